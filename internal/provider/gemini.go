package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"scribed/internal/config"
	"scribed/internal/logging"
)

// gemini sends the chunk inline with a transcription instruction through the
// generateContent API.
type gemini struct {
	model  string
	client *genai.Client
	logger *slog.Logger
}

func newGemini(cfg config.Provider, httpClient *http.Client, logger *slog.Logger) (*gemini, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &gemini{
		model:  cfg.Model,
		client: client,
		logger: logging.NewComponentLogger(logger, string(Gemini)),
	}, nil
}

func (g *gemini) Name() string { return string(Gemini) }

func (g *gemini) Transcribe(ctx context.Context, req Request) (string, error) {
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(g.instruction(req)),
		genai.NewPartFromBytes(req.Audio, mimeType),
	}, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", g.classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fatalError(g.Name(), fmt.Errorf("response carried no candidates"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

// classify maps SDK failures onto the shared taxonomy. API errors carry the
// HTTP status; anything else went wrong before a status arrived.
func (g *gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		g.logger.Warn("transcription request rejected",
			logging.Int("status", apiErr.Code))
		return statusError(g.Name(), apiErr.Code, apiErr.Message)
	}
	return transportError(g.Name(), err)
}

// instruction builds the transcription prompt. The model returns raw text,
// so the prompt forbids commentary.
func (g *gemini) instruction(req Request) string {
	var b strings.Builder
	b.WriteString("Transcribe this audio recording verbatim. Return only the transcript text, with no commentary or formatting.")
	if req.Language != "" {
		fmt.Fprintf(&b, " The audio is in %s.", LanguageName(req.Language))
	}
	if req.Hint != "" {
		fmt.Fprintf(&b, " Context that may help with names and terminology: %s", req.Hint)
	}
	return b.String()
}
