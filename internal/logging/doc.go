// Package logging constructs slog loggers with the console and JSON
// handlers used across scribed, plus helpers for attaching standardized
// attributes and deriving loggers from context values.
package logging
