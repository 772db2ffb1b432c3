package config

const (
	defaultDataDir       = "~/.local/share/glosser/annotations"
	defaultLogDir        = "~/.local/share/glosser/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultBatchSize     = 5
	defaultWorkers       = 4
	defaultSaveInterval  = 50
	defaultMaxRetries    = 2
	defaultContextWindow = 2

	defaultBackendID      = "local-ollama"
	defaultOllamaBaseURL  = "http://localhost:11434"
	defaultOllamaModel    = "qwen3:4b"
	defaultTimeoutSeconds = 60
	defaultMaxTokens      = 2000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Engine: Engine{
			BatchSize:     defaultBatchSize,
			Workers:       defaultWorkers,
			SaveInterval:  defaultSaveInterval,
			MaxRetries:    defaultMaxRetries,
			ContextWindow: defaultContextWindow,
		},
		DefaultBackend: defaultBackendID,
		Backends: []Backend{
			{
				ID:             defaultBackendID,
				Kind:           "ollama",
				BaseURL:        defaultOllamaBaseURL,
				Model:          defaultOllamaModel,
				TimeoutSeconds: defaultTimeoutSeconds,
				MaxTokens:      defaultMaxTokens,
				Temperature:    0.7,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
