// Package dispatch fans chunk transcription out to a provider under a
// process-wide concurrency ceiling, retrying transient failures with
// exponential backoff.
package dispatch
