package config

const (
	defaultStagingDir  = "~/.local/share/scribed/staging"
	defaultInboxDir    = ""
	defaultLogDir      = "~/.local/share/scribed/logs"
	defaultDatabaseDir = "~/.local/share/scribed/db"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultChunkDurationSeconds = 600
	defaultMinSilenceMS         = 500
	defaultSilenceThreshold     = 0.03
	defaultLookbackSeconds      = 30
	defaultBoundaryGuardMS      = 0

	defaultMaxActiveJobs       = 10
	defaultDefaultLanguage     = "auto"
	defaultDefaultProvider     = "gpt4o"
	defaultJobRetentionMinutes = 60

	defaultJanitorIntervalHours     = 6
	defaultJanitorMaxUploadAgeHours = 24

	defaultConcurrency           = 4
	defaultRetryCeiling          = 3
	defaultBackoffBaseMS         = 1000
	defaultBackoffCapMS          = 30000
	defaultRequestTimeoutSeconds = 300

	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultAssemblyAIBaseURL = "https://api.assemblyai.com"
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com"

	defaultWhisperModel = "whisper-1"
	defaultGPT4oModel   = "gpt-4o-transcribe"
	defaultGeminiModel  = "gemini-2.5-pro"

	// Whisper prompts beyond ~224 tokens are silently truncated server side,
	// so reject hints that cannot survive the trip.
	defaultOpenAIMaxHintLength = 900
	defaultMaxHintLength       = 2000

	defaultOpenAIMaxChunkBytes = 25 * 1024 * 1024
	defaultMaxChunkBytes       = 100 * 1024 * 1024
)

func defaultProvider(baseURL, model string, maxHint int, maxChunk int64) Provider {
	return Provider{
		BaseURL:               baseURL,
		Model:                 model,
		Concurrency:           defaultConcurrency,
		RetryCeiling:          defaultRetryCeiling,
		BackoffBaseMS:         defaultBackoffBaseMS,
		BackoffCapMS:          defaultBackoffCapMS,
		RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		MaxHintLength:         maxHint,
		MaxChunkBytes:         maxChunk,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:  defaultStagingDir,
			InboxDir:    defaultInboxDir,
			LogDir:      defaultLogDir,
			DatabaseDir: defaultDatabaseDir,
		},
		Providers: Providers{
			Whisper:    defaultProvider(defaultOpenAIBaseURL, defaultWhisperModel, defaultOpenAIMaxHintLength, defaultOpenAIMaxChunkBytes),
			GPT4o:      defaultProvider(defaultOpenAIBaseURL, defaultGPT4oModel, defaultOpenAIMaxHintLength, defaultOpenAIMaxChunkBytes),
			AssemblyAI: defaultProvider(defaultAssemblyAIBaseURL, "", 0, defaultMaxChunkBytes),
			Gemini:     defaultProvider(defaultGeminiBaseURL, defaultGeminiModel, defaultMaxHintLength, defaultMaxChunkBytes),
		},
		Segmenter: Segmenter{
			ChunkDurationSeconds: defaultChunkDurationSeconds,
			MinSilenceMS:         defaultMinSilenceMS,
			SilenceThreshold:     defaultSilenceThreshold,
			LookbackSeconds:      defaultLookbackSeconds,
			BoundaryGuardMS:      defaultBoundaryGuardMS,
		},
		Engine: Engine{
			MaxActiveJobs:       defaultMaxActiveJobs,
			DefaultLanguage:     defaultDefaultLanguage,
			DefaultProvider:     defaultDefaultProvider,
			JobRetentionMinutes: defaultJobRetentionMinutes,
		},
		Janitor: Janitor{
			IntervalHours:     defaultJanitorIntervalHours,
			MaxUploadAgeHours: defaultJanitorMaxUploadAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
