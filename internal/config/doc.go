// Package config loads, normalizes, and validates the TOML configuration
// consumed by the scribed daemon and CLI.
package config
