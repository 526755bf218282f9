// Package config handles tool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Bake    BakeConfig    `yaml:"bake"`
	Report  ReportConfig  `yaml:"report"`
	Logging LoggingConfig `yaml:"logging"`
}

// BakeConfig holds pose-to-rest settings.
type BakeConfig struct {
	CommitPolicy string `yaml:"commit_policy"` // partial or atomic
	Armature     string `yaml:"armature"`      // empty: active armature, then scene target
}

// ReportConfig holds output settings.
type ReportConfig struct {
	Language string `yaml:"language"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			CommitPolicy: "partial",
		},
		Report: ReportConfig{
			Language: "en",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
