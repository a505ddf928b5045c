package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribed/internal/config"
	"scribed/internal/history"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := executeCommand(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, want := range []string{"run", "transcribe", "history", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output does not mention target: %q", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading sample config: %v", err)
	}
	for _, want := range []string{"[paths]", "[segmenter]", "[providers.whisper]"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("sample config missing %q", want)
		}
	}

	// A second init without --overwrite refuses to clobber.
	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Error("config init overwrote an existing file")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Errorf("config init --overwrite failed: %v", err)
	}
}

func TestConfigShowFallsBackToDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	out, err := executeCommand(t, "config", "show", "--config", missing)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "showing defaults") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, `default_provider = "gpt4o"`) {
		t.Errorf("output missing default provider: %q", out)
	}
}

func TestHistoryListRendersTable(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("[paths]\nstaging_dir = %q\nlog_dir = %q\ndatabase_dir = %q\n",
		filepath.Join(dir, "staging"), filepath.Join(dir, "logs"), filepath.Join(dir, "db"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	rec := history.Record{
		ID:         "rec-1",
		Filename:   "talk.mp3",
		Provider:   "whisper",
		Language:   "en",
		Transcript: "hello there world",
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("seeding record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	out, err := executeCommand(t, "history", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	for _, want := range []string{"talk.mp3", "whisper", "3 words", "Outcome"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Piped output carries no ANSI color.
	if strings.Contains(out, "\x1b[") {
		t.Errorf("escape codes in non-terminal output:\n%s", out)
	}
}

func TestTranscribeRejectsUnknownProvider(t *testing.T) {
	upload := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(upload, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing upload: %v", err)
	}
	cfgDir := t.TempDir()
	t.Setenv("HOME", cfgDir)

	_, err := executeCommand(t, "transcribe", upload, "--provider", "deepgram")
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("transcribe returned %v", err)
	}
}
