package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBackends(); err != nil {
		return err
	}
	if err := c.normalizeOverrides(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackends() error {
	c.DefaultBackend = strings.TrimSpace(c.DefaultBackend)
	for i := range c.Backends {
		backend := &c.Backends[i]
		backend.ID = strings.TrimSpace(backend.ID)
		backend.Kind = strings.ToLower(strings.TrimSpace(backend.Kind))
		backend.BaseURL = strings.TrimRight(strings.TrimSpace(backend.BaseURL), "/")
		backend.Model = strings.TrimSpace(backend.Model)
		backend.APIKey = resolveCredential(backend.APIKey)
		if backend.TimeoutSeconds <= 0 {
			backend.TimeoutSeconds = defaultTimeoutSeconds
		}
		if backend.MaxTokens <= 0 {
			backend.MaxTokens = defaultMaxTokens
		}
	}
	if c.DefaultBackend == "" && len(c.Backends) > 0 {
		c.DefaultBackend = c.Backends[0].ID
	}
	return nil
}

// resolveCredential expands "${ENV_VAR}" references so API keys can stay out
// of the config file.
func resolveCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		return strings.TrimSpace(os.Getenv(trimmed[2 : len(trimmed)-1]))
	}
	return trimmed
}

func (c *Config) normalizeOverrides() error {
	var err error
	if strings.TrimSpace(c.Prompt.TemplatePath) != "" {
		if c.Prompt.TemplatePath, err = expandPath(c.Prompt.TemplatePath); err != nil {
			return fmt.Errorf("prompt.template_path: %w", err)
		}
	}
	if strings.TrimSpace(c.Taxonomy.Path) != "" {
		if c.Taxonomy.Path, err = expandPath(c.Taxonomy.Path); err != nil {
			return fmt.Errorf("taxonomy.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeEngine() {
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = defaultBatchSize
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = defaultWorkers
	}
	if c.Engine.SaveInterval <= 0 {
		c.Engine.SaveInterval = defaultSaveInterval
	}
	if c.Engine.MaxRetries < 0 {
		c.Engine.MaxRetries = 0
	}
	if c.Engine.ContextWindow < 0 {
		c.Engine.ContextWindow = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
