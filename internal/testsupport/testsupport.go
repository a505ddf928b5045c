// Package testsupport provides shared scaffolding for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"scribed/internal/config"
	"scribed/internal/history"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory, with placeholder API keys so provider construction succeeds.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.InboxDir = filepath.Join(root, "inbox")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.DatabaseDir = filepath.Join(root, "db")
	cfg.Providers.Whisper.APIKey = "test-key"
	cfg.Providers.GPT4o.APIKey = "test-key"
	cfg.Providers.AssemblyAI.APIKey = "test-key"
	cfg.Providers.Gemini.APIKey = "test-key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("creating test directories: %v", err)
	}
	return &cfg
}

// MustOpenHistory opens a history store against the test config and closes
// it when the test ends.
func MustOpenHistory(t *testing.T, cfg *config.Config) *history.Store {
	t.Helper()
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("opening history store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing history store: %v", err)
		}
	})
	return store
}
