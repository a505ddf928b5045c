// Package provider adapts the closed set of transcription backends behind a
// single Transcriber capability and classifies their failures so the
// dispatcher can decide between retrying and giving up.
package provider
