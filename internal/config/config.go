// Package config holds the kernel's runtime configuration: the environment
// variables and optional YAML defaults file that shape how a host process
// wires up logging, caching, and resource locations before it constructs a
// Registry and starts running composes.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the kernel's runtime configuration.
type Config struct {
	// LogLevel gates kernel logging: trace|debug|info|warn|error|fatal.
	LogLevel string `yaml:"log_level"`

	// CacheDir overrides the runtime cache directory.
	CacheDir string `yaml:"cache_dir"`

	// SpecRepoPath/Home locate the lcod-spec checkout and runtime home.
	SpecRepoPath string `yaml:"spec_repo_path"`
	Home         string `yaml:"home"`

	// EmbedRuntime selects a build-time embedded runtime bundle name.
	EmbedRuntime string `yaml:"embed_runtime"`
}

// Default returns the default configuration (LogLevel "info", everything
// else empty) before env/file overrides.
func Default() *Config {
	return &Config{
		LogLevel: "info",
	}
}

// Load builds a Config by layering, in increasing priority: defaults, an
// optional lcod.yaml in dir (if present), then environment variables.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if dir != "" {
		path := filepath.Join(dir, "lcod.yaml")
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LCOD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LCOD_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("SPEC_REPO_PATH"); v != "" {
		cfg.SpecRepoPath = v
	}
	if v := os.Getenv("LCOD_HOME"); v != "" {
		cfg.Home = v
	}
	if v := os.Getenv("LCOD_EMBED_RUNTIME"); v != "" {
		cfg.EmbedRuntime = v
	}
}
