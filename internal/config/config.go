package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir  string `toml:"staging_dir"`
	InboxDir    string `toml:"inbox_dir"`
	LogDir      string `toml:"log_dir"`
	DatabaseDir string `toml:"database_dir"`
}

// Provider contains connection and dispatch settings for one transcription backend.
type Provider struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Model                 string `toml:"model"`
	Concurrency           int    `toml:"concurrency"`
	RetryCeiling          int    `toml:"retry_ceiling"`
	BackoffBaseMS         int    `toml:"backoff_base_ms"`
	BackoffCapMS          int    `toml:"backoff_cap_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxHintLength         int    `toml:"max_hint_length"`
	MaxChunkBytes         int64  `toml:"max_chunk_bytes"`
}

// Providers bundles per-backend settings for the supported variants.
type Providers struct {
	Whisper    Provider `toml:"whisper"`
	GPT4o      Provider `toml:"gpt4o"`
	AssemblyAI Provider `toml:"assemblyai"`
	Gemini     Provider `toml:"gemini"`
}

// Segmenter contains silence-detection and chunk-sizing parameters.
type Segmenter struct {
	ChunkDurationSeconds int     `toml:"chunk_duration_seconds"`
	MinSilenceMS         int     `toml:"min_silence_ms"`
	SilenceThreshold     float64 `toml:"silence_threshold"`
	LookbackSeconds      int     `toml:"lookback_seconds"`
	BoundaryGuardMS      int     `toml:"boundary_guard_ms"`
}

// Engine contains job admission and lifecycle settings.
type Engine struct {
	MaxActiveJobs       int    `toml:"max_active_jobs"`
	DefaultLanguage     string `toml:"default_language"`
	DefaultProvider     string `toml:"default_provider"`
	JobRetentionMinutes int    `toml:"job_retention_minutes"`
}

// Janitor contains stale-upload cleanup settings.
type Janitor struct {
	IntervalHours     int `toml:"interval_hours"`
	MaxUploadAgeHours int `toml:"max_upload_age_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scribed.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Providers Providers `toml:"providers"`
	Segmenter Segmenter `toml:"segmenter"`
	Engine    Engine    `toml:"engine"`
	Janitor   Janitor   `toml:"janitor"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribed/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.DatabaseDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if err := os.MkdirAll(c.Paths.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Paths.InboxDir, err)
		}
	}
	return nil
}

// ProviderFor returns the settings block for a provider choice name.
func (c *Config) ProviderFor(name string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "whisper":
		return c.Providers.Whisper, true
	case "gpt4o":
		return c.Providers.GPT4o, true
	case "assemblyai":
		return c.Providers.AssemblyAI, true
	case "gemini":
		return c.Providers.Gemini, true
	default:
		return Provider{}, false
	}
}

// FFmpegBinary returns the ffmpeg executable name used for audio decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
