package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"glosser/internal/checkpoint"
	"glosser/internal/config"
	"glosser/internal/engine"
	"glosser/internal/llm"
	"glosser/internal/logging"
	"glosser/internal/prompt"
	"glosser/internal/records"
	"glosser/internal/taxonomy"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles the stores and services a command needs. Commands open it
// on demand and close it before returning.
type runtime struct {
	cfg         *config.Config
	logger      *slog.Logger
	registry    *llm.Registry
	outputs     *records.Store
	checkpoints *checkpoint.Store
	manager     *engine.Manager
}

func (c *commandContext) openRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "glosser.log")},
	})
	if err != nil {
		return nil, err
	}

	tax := taxonomy.Default()
	if cfg.Taxonomy.Path != "" {
		tax, err = taxonomy.Load(cfg.Taxonomy.Path)
		if err != nil {
			return nil, err
		}
	}
	prompts, err := prompt.NewBuilder(tax, cfg.Prompt.TemplatePath)
	if err != nil {
		return nil, err
	}

	checkpoints, err := checkpoint.Open(filepath.Join(cfg.Paths.DataDir, "checkpoints.db"))
	if err != nil {
		return nil, err
	}

	registry := llm.NewRegistry(backendConfigs(cfg))
	outputs := records.NewStore(cfg.Paths.DataDir)

	manager, err := engine.NewManager(engine.ManagerOptions{
		DataDir:        cfg.Paths.DataDir,
		DefaultBackend: cfg.DefaultBackend,
		Settings: engine.Settings{
			BatchSize:     cfg.Engine.BatchSize,
			Workers:       cfg.Engine.Workers,
			SaveInterval:  cfg.Engine.SaveInterval,
			MaxRetries:    cfg.Engine.MaxRetries,
			ContextWindow: cfg.Engine.ContextWindow,
		},
		Registry:    registry,
		Prompts:     prompts,
		Outputs:     outputs,
		Checkpoints: checkpoints,
		Logger:      logger,
	})
	if err != nil {
		_ = checkpoints.Close()
		return nil, err
	}

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		registry:    registry,
		outputs:     outputs,
		checkpoints: checkpoints,
		manager:     manager,
	}, nil
}

func (rt *runtime) Close() error {
	return rt.checkpoints.Close()
}

func backendConfigs(cfg *config.Config) []llm.Config {
	configs := make([]llm.Config, 0, len(cfg.Backends))
	for _, backend := range cfg.Backends {
		configs = append(configs, llm.Config{
			ID:             backend.ID,
			Kind:           backend.Kind,
			BaseURL:        backend.BaseURL,
			Model:          backend.Model,
			APIKey:         backend.APIKey,
			MaxTokens:      backend.MaxTokens,
			Temperature:    backend.Temperature,
			TimeoutSeconds: backend.TimeoutSeconds,
		})
	}
	return configs
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
