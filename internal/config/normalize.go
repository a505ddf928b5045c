package config

import (
	"os"
	"strings"
)

// normalize expands paths, applies environment fallbacks for secrets, and
// fills zero values with defaults so later validation sees a complete config.
func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.DatabaseDir, err = expandPath(c.Paths.DatabaseDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
			return err
		}
	}

	applyKeyFallback(&c.Providers.Whisper, "OPENAI_API_KEY")
	applyKeyFallback(&c.Providers.GPT4o, "OPENAI_API_KEY")
	applyKeyFallback(&c.Providers.AssemblyAI, "ASSEMBLYAI_API_KEY")
	applyKeyFallback(&c.Providers.Gemini, "GEMINI_API_KEY")

	normalizeProvider(&c.Providers.Whisper, defaultOpenAIBaseURL, defaultWhisperModel, defaultOpenAIMaxHintLength, defaultOpenAIMaxChunkBytes)
	normalizeProvider(&c.Providers.GPT4o, defaultOpenAIBaseURL, defaultGPT4oModel, defaultOpenAIMaxHintLength, defaultOpenAIMaxChunkBytes)
	normalizeProvider(&c.Providers.AssemblyAI, defaultAssemblyAIBaseURL, "", 0, defaultMaxChunkBytes)
	normalizeProvider(&c.Providers.Gemini, defaultGeminiBaseURL, defaultGeminiModel, defaultMaxHintLength, defaultMaxChunkBytes)

	if c.Segmenter.ChunkDurationSeconds <= 0 {
		c.Segmenter.ChunkDurationSeconds = defaultChunkDurationSeconds
	}
	if c.Segmenter.MinSilenceMS <= 0 {
		c.Segmenter.MinSilenceMS = defaultMinSilenceMS
	}
	if c.Segmenter.SilenceThreshold <= 0 {
		c.Segmenter.SilenceThreshold = defaultSilenceThreshold
	}
	if c.Segmenter.LookbackSeconds <= 0 {
		c.Segmenter.LookbackSeconds = defaultLookbackSeconds
	}
	if c.Segmenter.BoundaryGuardMS < 0 {
		c.Segmenter.BoundaryGuardMS = 0
	}

	if c.Engine.MaxActiveJobs <= 0 {
		c.Engine.MaxActiveJobs = defaultMaxActiveJobs
	}
	if strings.TrimSpace(c.Engine.DefaultLanguage) == "" {
		c.Engine.DefaultLanguage = defaultDefaultLanguage
	}
	if strings.TrimSpace(c.Engine.DefaultProvider) == "" {
		c.Engine.DefaultProvider = defaultDefaultProvider
	}
	if c.Engine.JobRetentionMinutes <= 0 {
		c.Engine.JobRetentionMinutes = defaultJobRetentionMinutes
	}

	if c.Janitor.IntervalHours <= 0 {
		c.Janitor.IntervalHours = defaultJanitorIntervalHours
	}
	if c.Janitor.MaxUploadAgeHours <= 0 {
		c.Janitor.MaxUploadAgeHours = defaultJanitorMaxUploadAgeHours
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func applyKeyFallback(p *Provider, envVar string) {
	if strings.TrimSpace(p.APIKey) != "" {
		return
	}
	if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
		p.APIKey = value
	}
}

func normalizeProvider(p *Provider, baseURL, model string, maxHint int, maxChunk int64) {
	if strings.TrimSpace(p.BaseURL) == "" {
		p.BaseURL = baseURL
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if strings.TrimSpace(p.Model) == "" {
		p.Model = model
	}
	if p.Concurrency <= 0 {
		p.Concurrency = defaultConcurrency
	}
	if p.RetryCeiling <= 0 {
		p.RetryCeiling = defaultRetryCeiling
	}
	if p.BackoffBaseMS <= 0 {
		p.BackoffBaseMS = defaultBackoffBaseMS
	}
	if p.BackoffCapMS < p.BackoffBaseMS {
		p.BackoffCapMS = defaultBackoffCapMS
	}
	if p.RequestTimeoutSeconds <= 0 {
		p.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if p.MaxHintLength <= 0 {
		p.MaxHintLength = maxHint
	}
	if p.MaxChunkBytes <= 0 {
		p.MaxChunkBytes = maxChunk
	}
}
