package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".withme"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. WITHME_CONFIG
// overrides the default ~/.withme/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WITHME_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func expandHome(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := resolveHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("WITHME_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load reads the config file (if present), applies defaults, then layers
// WITHME_* environment overrides on top. A missing file is not an error;
// defaults plus env are enough to run in fallback mode.
func Load() (*Config, error) {
	LoadEnvFileCandidates()

	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	applyDerivedDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Errors here mean a malformed override value; the file/default
	// value stays in effect.
	_ = envconfig.Process("WITHME_PATHS", &cfg.Paths)
	_ = envconfig.Process("WITHME_MODEL", &cfg.Model)
	_ = envconfig.Process("WITHME_OPENAI", &cfg.Providers.OpenAI)
	_ = envconfig.Process("WITHME_FAL", &cfg.Providers.Fal)
	_ = envconfig.Process("WITHME_STORAGE", &cfg.Storage)
	_ = envconfig.Process("WITHME_QUEUE", &cfg.Queue)
	_ = envconfig.Process("WITHME_SCHEDULER", &cfg.Scheduler)
	_ = envconfig.Process("WITHME_ENGAGEMENT", &cfg.Engagement)
	_ = envconfig.Process("WITHME_NOTIFY", &cfg.Notify)
	_ = envconfig.Process("WITHME_SERVER", &cfg.Server)
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.Paths.DataDir == "" {
		if home, err := resolveHomeDir(); err == nil {
			cfg.Paths.DataDir = filepath.Join(home, ConfigDir)
		}
	}
	if cfg.Paths.DBPath == "" && cfg.Paths.DataDir != "" {
		cfg.Paths.DBPath = filepath.Join(cfg.Paths.DataDir, "withme.db")
	}
	if cfg.Scheduler.LockPath == "" && cfg.Paths.DataDir != "" {
		cfg.Scheduler.LockPath = filepath.Join(cfg.Paths.DataDir, "scheduler.lock")
	}
	if cfg.Providers.Fal.PollInterval <= 0 {
		cfg.Providers.Fal.PollInterval = DefaultConfig().Providers.Fal.PollInterval
	}
	if cfg.Providers.Fal.MaxPolls <= 0 {
		cfg.Providers.Fal.MaxPolls = DefaultConfig().Providers.Fal.MaxPolls
	}
	if cfg.Engagement.RecentMessageWindow <= 0 {
		cfg.Engagement.RecentMessageWindow = 20
	}
}

// Save writes the config as indented JSON, creating the directory if
// needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
