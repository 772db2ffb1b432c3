package config

import (
	"errors"
	"fmt"
	"strings"
)

var backendKinds = map[string]struct{}{
	"ollama": {},
	"openai": {},
	"vendor": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackends() error {
	if len(c.Backends) == 0 {
		return errors.New("at least one [[backends]] entry must be configured")
	}
	seen := map[string]struct{}{}
	for _, backend := range c.Backends {
		if backend.ID == "" {
			return errors.New("backends: id must be set")
		}
		if _, ok := seen[backend.ID]; ok {
			return fmt.Errorf("backends: duplicate id %q", backend.ID)
		}
		seen[backend.ID] = struct{}{}
		if _, ok := backendKinds[backend.Kind]; !ok {
			return fmt.Errorf("backends: %s: unsupported kind %q (want ollama, openai, or vendor)", backend.ID, backend.Kind)
		}
		if backend.BaseURL == "" {
			return fmt.Errorf("backends: %s: base_url must be set", backend.ID)
		}
		if backend.Model == "" {
			return fmt.Errorf("backends: %s: model must be set", backend.ID)
		}
		if backend.Kind != "ollama" && backend.APIKey == "" {
			return fmt.Errorf("backends: %s: api_key must be set for kind %q", backend.ID, backend.Kind)
		}
		if backend.Temperature < 0 || backend.Temperature > 2 {
			return fmt.Errorf("backends: %s: temperature must be between 0 and 2", backend.ID)
		}
	}
	if _, err := c.BackendByID(c.DefaultBackend); err != nil {
		return fmt.Errorf("default_backend: %w", err)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.BatchSize < 1 {
		return errors.New("engine.batch_size must be at least 1")
	}
	if c.Engine.Workers < 1 {
		return errors.New("engine.workers must be at least 1")
	}
	if c.Engine.SaveInterval < 1 {
		return errors.New("engine.save_interval must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
