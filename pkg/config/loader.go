package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load soarcore.yaml from configDir (if present)
//  2. Expand environment variables
//  3. Merge onto the built-in defaults (user overrides defaults)
//  4. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"worker_count", cfg.Queue.WorkerCount,
		"max_step_executions", cfg.Engine.MaxStepExecutions)

	return cfg, nil
}

type yamlConfig struct {
	Webhook *WebhookConfig `yaml:"webhook"`
	Engine  *EngineConfig  `yaml:"engine"`
	SLA     *SLAConfig     `yaml:"sla"`
	Queue   *QueueConfig   `yaml:"queue"`
	Server  *ServerConfig  `yaml:"server"`
	Store   *StoreConfig   `yaml:"store"`
	Redis   *RedisConfig   `yaml:"redis"`
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "soarcore.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No user config file — run on built-in defaults alone.
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var parsed yamlConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergeInto(cfg, &parsed); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	return cfg, nil
}

// mergeInto merges any user-supplied sections onto the built-in defaults.
// Non-zero fields in the user config override the default; zero-value
// fields keep the default (mergo.WithOverride with a non-nil source
// section — only the fields actually set in YAML are non-zero).
func mergeInto(cfg *Config, parsed *yamlConfig) error {
	if parsed.Webhook != nil {
		if err := mergo.Merge(&cfg.Webhook, parsed.Webhook, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.Engine != nil {
		if err := mergo.Merge(&cfg.Engine, parsed.Engine, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.SLA != nil {
		if err := mergo.Merge(&cfg.SLA, parsed.SLA, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.Queue != nil {
		if err := mergo.Merge(&cfg.Queue, parsed.Queue, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.Server != nil {
		if err := mergo.Merge(&cfg.Server, parsed.Server, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.Store != nil {
		if err := mergo.Merge(&cfg.Store, parsed.Store, mergo.WithOverride); err != nil {
			return err
		}
	}
	if parsed.Redis != nil {
		if err := mergo.Merge(&cfg.Redis, parsed.Redis, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}
