package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scribed/internal/config"
)

// Choice names one of the supported transcription backends.
type Choice string

const (
	Whisper    Choice = "whisper"
	GPT4o      Choice = "gpt4o"
	AssemblyAI Choice = "assemblyai"
	Gemini     Choice = "gemini"
)

// Choices lists every supported backend in display order.
func Choices() []Choice {
	return []Choice{Whisper, GPT4o, AssemblyAI, Gemini}
}

// ParseChoice validates a user-supplied provider name.
func ParseChoice(s string) (Choice, error) {
	switch Choice(strings.ToLower(strings.TrimSpace(s))) {
	case Whisper:
		return Whisper, nil
	case GPT4o:
		return GPT4o, nil
	case AssemblyAI:
		return AssemblyAI, nil
	case Gemini:
		return Gemini, nil
	default:
		return "", fmt.Errorf("unknown provider %q (supported: whisper, gpt4o, assemblyai, gemini)", s)
	}
}

// Request carries one chunk to a backend. Audio is a complete WAV payload.
// Language is a normalized BCP 47 tag, empty for provider-side detection.
// Hint is free-form context (names, jargon) passed through to the backend.
type Request struct {
	Audio    []byte
	MIMEType string
	Language string
	Hint     string
}

// Transcriber converts one audio chunk into text. Implementations return a
// classified *Error on failure so callers can make retry decisions.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (string, error)
}

// New builds the backend for a choice from its configuration section.
func New(choice Choice, cfg config.Provider, logger *slog.Logger) (Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key not configured", choice)
	}
	client := &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}
	switch choice {
	case Whisper, GPT4o:
		return newOpenAI(choice, cfg, client, logger), nil
	case AssemblyAI:
		return newAssemblyAI(cfg, client, logger), nil
	case Gemini:
		return newGemini(cfg, client, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", choice)
	}
}

// ValidateHint enforces the per-provider hint length limit before any
// request is made.
func ValidateHint(hint string, limit int) error {
	if limit > 0 && len(hint) > limit {
		return fmt.Errorf("context hint is %d bytes, limit is %d", len(hint), limit)
	}
	return nil
}
