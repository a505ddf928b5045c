package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scribed/internal/config"
	"scribed/internal/logging"
)

// assemblyAI uploads the chunk, creates a transcript, then polls it to a
// terminal status. Polling interval is a field so tests can shrink it.
type assemblyAI struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	client       *http.Client
	logger       *slog.Logger
}

func newAssemblyAI(cfg config.Provider, client *http.Client, logger *slog.Logger) *assemblyAI {
	return &assemblyAI{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: 2 * time.Second,
		client:       client,
		logger:       logging.NewComponentLogger(logger, string(AssemblyAI)),
	}
}

func (a *assemblyAI) Name() string { return string(AssemblyAI) }

func (a *assemblyAI) Transcribe(ctx context.Context, req Request) (string, error) {
	uploadURL, err := a.upload(ctx, req.Audio)
	if err != nil {
		return "", err
	}
	id, err := a.createTranscript(ctx, uploadURL, req)
	if err != nil {
		return "", err
	}
	return a.poll(ctx, id)
}

func (a *assemblyAI) upload(ctx context.Context, audio []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fatalError(a.Name(), err)
	}
	httpReq.Header.Set("Authorization", a.apiKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(httpReq, &result); err != nil {
		return "", err
	}
	if result.UploadURL == "" {
		return "", fatalError(a.Name(), fmt.Errorf("upload response carried no URL"))
	}
	return result.UploadURL, nil
}

func (a *assemblyAI) createTranscript(ctx context.Context, audioURL string, req Request) (string, error) {
	body := map[string]any{"audio_url": audioURL}
	if req.Language != "" {
		body["language_code"] = req.Language
	}
	if req.Hint != "" {
		body["word_boost"] = strings.Fields(req.Hint)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fatalError(a.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fatalError(a.Name(), err)
	}
	httpReq.Header.Set("Authorization", a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	var result struct {
		ID string `json:"id"`
	}
	if err := a.do(httpReq, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fatalError(a.Name(), fmt.Errorf("transcript response carried no id"))
	}
	return result.ID, nil
}

func (a *assemblyAI) poll(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return "", fatalError(a.Name(), err)
		}
		httpReq.Header.Set("Authorization", a.apiKey)

		var result struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := a.do(httpReq, &result); err != nil {
			return "", err
		}
		switch result.Status {
		case "completed":
			return strings.TrimSpace(result.Text), nil
		case "error":
			return "", fatalError(a.Name(), fmt.Errorf("transcription failed: %s", result.Error))
		}

		select {
		case <-ctx.Done():
			return "", transportError(a.Name(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *assemblyAI) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return transportError(a.Name(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transportError(a.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("request rejected",
			logging.String("path", req.URL.Path),
			logging.Int("status", resp.StatusCode))
		return statusError(a.Name(), resp.StatusCode, snippet(payload))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fatalError(a.Name(), fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
