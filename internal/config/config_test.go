package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Bake.CommitPolicy != "partial" {
		t.Errorf("expected commit policy 'partial', got %s", cfg.Bake.CommitPolicy)
	}
	if cfg.Bake.Armature != "" {
		t.Errorf("expected no armature override, got %s", cfg.Bake.Armature)
	}
	if cfg.Report.Language != "en" {
		t.Errorf("expected language 'en', got %s", cfg.Report.Language)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
bake:
  commit_policy: atomic
  armature: Rig

report:
  language: ja

logging:
  level: "debug"
  log_file: "posetorest.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Bake.CommitPolicy != "atomic" {
		t.Errorf("expected commit policy 'atomic', got %s", cfg.Bake.CommitPolicy)
	}
	if cfg.Bake.Armature != "Rig" {
		t.Errorf("expected armature 'Rig', got %s", cfg.Bake.Armature)
	}
	if cfg.Report.Language != "ja" {
		t.Errorf("expected language 'ja', got %s", cfg.Report.Language)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "posetorest.log" {
		t.Errorf("expected log file 'posetorest.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("report:\n  language: ja\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Bake.CommitPolicy != "partial" {
		t.Errorf("expected default commit policy to survive, got %s", cfg.Bake.CommitPolicy)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
bake:
  commit_policy: [not, a, string]
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"atomic", func(c *Config) { c.Bake.CommitPolicy = "atomic" }, false},
		{"empty policy", func(c *Config) { c.Bake.CommitPolicy = "" }, false},
		{"unknown policy", func(c *Config) { c.Bake.CommitPolicy = "sometimes" }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)
	t.Setenv("APPDATA", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// A stray config.yaml in the working directory is not ours.
	if err := os.WriteFile("config.yaml", []byte("unrelated: true\n"), 0644); err != nil {
		t.Fatalf("failed to create stray config: %v", err)
	}
	if path := findConfigFile(); path != "" {
		t.Errorf("expected config.yaml in working directory to be ignored, got %s", path)
	}

	userPath := filepath.Join(ConfigDir(), "config.yaml")
	if err := os.MkdirAll(filepath.Dir(userPath), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(userPath, []byte("bake:\n  armature: Rig\n"), 0644); err != nil {
		t.Fatalf("failed to create user config: %v", err)
	}
	if path := findConfigFile(); path != userPath {
		t.Errorf("expected %s, got %s", userPath, path)
	}

	if err := os.WriteFile(localConfig, []byte("bake:\n  armature: Local\n"), 0644); err != nil {
		t.Fatalf("failed to create local config: %v", err)
	}
	if path := findConfigFile(); path != localConfig {
		t.Errorf("expected %s to win over the user config, got %s", localConfig, path)
	}
}

func TestLoadFromFileUnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  comit_policy: atomic\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	err := loadFromFile(Default(), configPath)
	if err == nil {
		t.Fatal("expected error for misspelt key, got nil")
	}
	if !strings.Contains(err.Error(), "comit_policy") {
		t.Errorf("expected error naming the key, got %v", err)
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("expected empty file to load, got %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("expected defaults, got %+v", *cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(configPath, []byte("report:\n  language: ja\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(EnvConfig, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Report.Language != "ja" {
		t.Errorf("expected language ja from %s, got %s", EnvConfig, cfg.Report.Language)
	}

	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing file named by the environment, got nil")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "atomic flag",
			setup: func() { *flagAtomic = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.CommitPolicy != "atomic" {
					t.Errorf("expected commit policy 'atomic', got %s", cfg.Bake.CommitPolicy)
				}
			},
			teardown: func() { *flagAtomic = false },
		},
		{
			name:  "armature flag",
			setup: func() { *flagArmature = "Rig" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Armature != "Rig" {
					t.Errorf("expected armature 'Rig', got %s", cfg.Bake.Armature)
				}
			},
			teardown: func() { *flagArmature = "" },
		},
		{
			name:  "lang flag",
			setup: func() { *flagLang = "ja" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Report.Language != "ja" {
					t.Errorf("expected language 'ja', got %s", cfg.Report.Language)
				}
			},
			teardown: func() { *flagLang = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
bake:
  commit_policy: atomic
  armature: FileRig
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagArmature = "FlagRig"
	defer func() {
		*flagConfig = ""
		*flagArmature = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Bake.Armature != "FlagRig" {
		t.Errorf("expected armature FlagRig from flag, got %s", cfg.Bake.Armature)
	}
	if cfg.Bake.CommitPolicy != "atomic" {
		t.Errorf("expected commit policy atomic from file, got %s", cfg.Bake.CommitPolicy)
	}
	if cfg.Report.Language != "en" {
		t.Errorf("expected default language en, got %s", cfg.Report.Language)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  commit_policy: maybe\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected unknown policy to be rejected")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Bake.CommitPolicy = "atomic"
	cfg.Report.Language = "ja"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", *cfg, *loaded)
	}
}

func TestSave(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	path, err := Default().Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config at %s: %v", path, err)
	}
}
