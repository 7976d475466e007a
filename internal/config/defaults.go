package config

const (
	defaultOutputDir  = "~/subflow/out"
	defaultArchiveDir = "~/.local/share/subflow/archives"
	defaultWorkDir    = "~/.local/share/subflow/work"
	defaultLogDir     = "~/.local/share/subflow/logs"
	defaultHistoryDB  = "~/.local/share/subflow/history.db"

	defaultQueueCapacity      = 100
	defaultDetectWorkers      = 10
	defaultFetchWorkers       = 10
	defaultTranslateWorkers   = 5
	defaultSummarizeWorkers   = 5
	defaultPublishWorkers     = 10
	defaultMaxAttempts        = 3
	defaultRetryBaseDelayMS   = 1000
	defaultRetryMaxDelayMS    = 30000
	defaultStopTimeoutSeconds = 30
	defaultLLMPerMinute       = 60

	defaultYtDlpBinary          = "yt-dlp"
	defaultProbeTimeoutSeconds  = 60
	defaultFetchTimeoutSeconds  = 600
	defaultProxyCooldownSeconds = 120

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMTimeoutSeconds = 120

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			ArchiveDir: defaultArchiveDir,
			WorkDir:    defaultWorkDir,
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
		},
		Pipeline: Pipeline{
			QueueCapacity:        defaultQueueCapacity,
			DetectWorkers:        defaultDetectWorkers,
			FetchWorkers:         defaultFetchWorkers,
			TranslateWorkers:     defaultTranslateWorkers,
			SummarizeWorkers:     defaultSummarizeWorkers,
			PublishWorkers:       defaultPublishWorkers,
			MaxAttempts:          defaultMaxAttempts,
			RetryBaseDelayMS:     defaultRetryBaseDelayMS,
			RetryMaxDelayMS:      defaultRetryMaxDelayMS,
			StopTimeoutSeconds:   defaultStopTimeoutSeconds,
			LLMRequestsPerMinute: defaultLLMPerMinute,
		},
		YtDlp: YtDlp{
			Binary:                 defaultYtDlpBinary,
			ProbeTimeoutSeconds:    defaultProbeTimeoutSeconds,
			DownloadTimeoutSeconds: defaultFetchTimeoutSeconds,
			ProxyCooldownSeconds:   defaultProxyCooldownSeconds,
		},
		Translation: Translation{
			LLM: LLM{
				BaseURL:        defaultLLMBaseURL,
				TimeoutSeconds: defaultLLMTimeoutSeconds,
			},
			TargetLanguages: []string{"zh"},
		},
		Summary: Summary{
			LLM: LLM{
				TimeoutSeconds: defaultLLMTimeoutSeconds,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
