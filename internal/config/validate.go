package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabaseDir) == "" {
		return errors.New("paths.database_dir must be set")
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if c.Segmenter.SilenceThreshold >= 1 {
		return errors.New("segmenter.silence_threshold must be below 1 (normalized amplitude)")
	}
	if c.Segmenter.LookbackSeconds*2 > c.Segmenter.ChunkDurationSeconds {
		return errors.New("segmenter.lookback_seconds must not exceed half the chunk duration")
	}
	guardSeconds := c.Segmenter.BoundaryGuardMS / 1000
	if guardSeconds > 0 && guardSeconds >= c.Segmenter.ChunkDurationSeconds {
		return errors.New("segmenter.boundary_guard_ms must be shorter than the chunk duration")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if _, ok := c.ProviderFor(c.Engine.DefaultProvider); !ok {
		return fmt.Errorf("engine.default_provider: unknown provider %q", c.Engine.DefaultProvider)
	}
	return nil
}

func (c *Config) validateProviders() error {
	for _, entry := range []struct {
		name string
		p    Provider
	}{
		{"whisper", c.Providers.Whisper},
		{"gpt4o", c.Providers.GPT4o},
		{"assemblyai", c.Providers.AssemblyAI},
		{"gemini", c.Providers.Gemini},
	} {
		if strings.TrimSpace(entry.p.BaseURL) == "" {
			return fmt.Errorf("providers.%s.base_url must be set", entry.name)
		}
		if entry.p.RetryCeiling > 10 {
			return fmt.Errorf("providers.%s.retry_ceiling must not exceed 10", entry.name)
		}
		if entry.p.BackoffCapMS < entry.p.BackoffBaseMS {
			return fmt.Errorf("providers.%s.backoff_cap_ms must be at least backoff_base_ms", entry.name)
		}
	}
	return nil
}
