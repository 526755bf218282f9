package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags. The file
// is the -config path, else $POSETOREST_CONFIG, else the first one found by
// findConfigFile.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Explicit path first, then the environment, then the search path
	configPath := ConfigPath()
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have a fixed vocabulary.
func (c *Config) Validate() error {
	switch c.Bake.CommitPolicy {
	case "", "partial", "atomic":
	default:
		return fmt.Errorf("bake.commit_policy: unknown policy %q", c.Bake.CommitPolicy)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// EnvConfig names the environment variable that points at a config file
// when no -config flag is given.
const EnvConfig = "POSETOREST_CONFIG"

// localConfig is looked up in the working directory before the user config.
const localConfig = "posetorest.yaml"

// findConfigFile returns the first existing config: the project-local file,
// then config.yaml in ConfigDir.
func findConfigFile() string {
	for _, path := range []string{localConfig, filepath.Join(ConfigDir(), "config.yaml")} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory of the tool.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "posetorest")
}

// loadFromFile merges a YAML file over cfg. Unknown keys are rejected so a
// misspelt setting does not silently fall back to its default. An empty file
// leaves cfg unchanged.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
