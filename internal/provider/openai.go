package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"scribed/internal/config"
	"scribed/internal/logging"
)

// openAI serves both OpenAI speech models (whisper-1 and gpt-4o-transcribe);
// they share the audio/transcriptions endpoint and differ only in the model
// field.
type openAI struct {
	name          string
	model         string
	baseURL       string
	apiKey        string
	maxChunkBytes int64
	client        *http.Client
	logger        *slog.Logger
}

func newOpenAI(choice Choice, cfg config.Provider, client *http.Client, logger *slog.Logger) *openAI {
	return &openAI{
		name:          string(choice),
		model:         cfg.Model,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		maxChunkBytes: cfg.MaxChunkBytes,
		client:        client,
		logger:        logging.NewComponentLogger(logger, string(choice)),
	}
}

func (o *openAI) Name() string { return o.name }

func (o *openAI) Transcribe(ctx context.Context, req Request) (string, error) {
	if o.maxChunkBytes > 0 && int64(len(req.Audio)) > o.maxChunkBytes {
		return "", fatalError(o.name, fmt.Errorf("chunk is %d bytes, API limit is %d", len(req.Audio), o.maxChunkBytes))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return "", fatalError(o.name, err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", fatalError(o.name, err)
	}
	fields := map[string]string{
		"model":           o.model,
		"response_format": "json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Hint != "" {
		fields["prompt"] = req.Hint
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return "", fatalError(o.name, err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fatalError(o.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fatalError(o.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", transportError(o.name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", transportError(o.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		o.logger.Warn("transcription request rejected",
			logging.Int("status", resp.StatusCode))
		return "", statusError(o.name, resp.StatusCode, snippet(payload))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fatalError(o.name, fmt.Errorf("decoding response: %w", err))
	}
	return strings.TrimSpace(result.Text), nil
}

// snippet trims a response body down to something loggable.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
