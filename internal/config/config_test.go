package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.AppName != "abeval" {
		t.Errorf("Expected AppName 'abeval', got %s", cfg.AppName)
	}

	if cfg.Version == "" {
		t.Error("Version not set")
	}

	if cfg.Search.Depth != 3 {
		t.Errorf("Expected search depth 3, got %d", cfg.Search.Depth)
	}

	if len(cfg.Model.HiddenSizes) != 3 || cfg.Model.HiddenSizes[0] != 180 {
		t.Errorf("Expected hidden sizes [180 180 180], got %v", cfg.Model.HiddenSizes)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero depth", func(c *Config) { c.Search.Depth = 0 }},
		{"unknown algorithm", func(c *Config) { c.Search.Algorithm = "mcts" }},
		{"parallel without workers", func(c *Config) { c.Search.Parallel = true; c.Search.Workers = 0 }},
		{"unknown strategy", func(c *Config) { c.Evaluator.Strategy = "random" }},
		{"unknown encoding", func(c *Config) { c.Evaluator.Encoding = "bitboard" }},
		{"learned without model", func(c *Config) { c.Evaluator.Strategy = "learned"; c.Model.ModelPath = "" }},
		{"empty hidden layer", func(c *Config) { c.Model.HiddenSizes = []int{64, 0} }},
		{"cache without path", func(c *Config) { c.Cache.Enabled = true; c.Cache.Path = "" }},
		{"negative clip", func(c *Config) { c.Data.ClipRange = -1 }},
		{"zero mate score", func(c *Config) { c.Data.MateScore = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Evaluator.Strategy = "learned"
	cfg.Evaluator.Encoding = "ordinal"
	cfg.Search.Algorithm = "minimax"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Valid learned config failed validation: %v", err)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Create and save config
	cfg := DefaultConfig()
	cfg.AppName = "TestApp"
	cfg.Search.Depth = 5
	cfg.Cache.ModelTag = "value-v2"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// Check file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	// Load config
	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.AppName != "TestApp" || loaded.Search.Depth != 5 || loaded.Cache.ModelTag != "value-v2" {
		t.Errorf("Loaded config does not match saved: %+v", loaded)
	}
}

func TestLoadPartial(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.json")
	if err := os.WriteFile(configPath, []byte(`{"search": {"depth": 4}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Search.Depth != 4 {
		t.Errorf("Expected depth 4, got %d", cfg.Search.Depth)
	}
	// Unset fields keep their defaults
	if cfg.Search.Algorithm != "alphabeta" || cfg.Data.MateScore != 100 {
		t.Errorf("Defaults not preserved: %+v", cfg)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(configPath, []byte(`{"search":`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoadOrDefault(t *testing.T) {
	// Test with non-existent file
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed for missing file: %v", err)
	}

	if cfg.AppName != "abeval" {
		t.Error("LoadOrDefault did not return default config")
	}

	// Test with existing file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testCfg := DefaultConfig()
	testCfg.AppName = "CustomName"
	if err := testCfg.Save(configPath); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadOrDefault(configPath)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if loaded.AppName != "CustomName" {
		t.Error("LoadOrDefault did not load existing config")
	}
}

func TestLoadOrDefaultMalformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	truncated := `{"evaluator": {"strategy": "learned", "encoding": "onehot"},`
	if err := os.WriteFile(configPath, []byte(truncated), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrDefault(configPath)
	if err == nil {
		t.Fatalf("Expected parse error, got config with strategy %q", cfg.Evaluator.Strategy)
	}
	if cfg != nil {
		t.Error("Expected no config on parse error")
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Logging.Path = filepath.Join(tmpDir, "logs", "test.log")
	cfg.Model.ModelPath = filepath.Join(tmpDir, "models", "test.gob")
	cfg.Data.DatasetPath = filepath.Join(tmpDir, "data", "test.db")
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(tmpDir, "cache", "eval.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("Failed to ensure directories: %v", err)
	}

	// Check directories were created
	dirs := []string{
		filepath.Join(tmpDir, "logs"),
		filepath.Join(tmpDir, "models"),
		filepath.Join(tmpDir, "data"),
		filepath.Join(tmpDir, "cache"),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Directory was not created: %s", dir)
		}
	}
}

func TestCacheTag(t *testing.T) {
	cfg := DefaultConfig()

	tag, err := cfg.CacheTag()
	if err != nil || tag != "material" {
		t.Errorf("Expected material tag, got %q (%v)", tag, err)
	}

	cfg.Cache.ModelTag = "value-v2"
	if tag, _ := cfg.CacheTag(); tag != "value-v2" {
		t.Errorf("Explicit tag ignored, got %q", tag)
	}

	// Learned tags follow the weight file contents.
	cfg.Cache.ModelTag = ""
	cfg.Evaluator.Strategy = "learned"
	cfg.Model.ModelPath = filepath.Join(t.TempDir(), "value.gob")

	if _, err := cfg.CacheTag(); err == nil {
		t.Error("Expected error for missing weight file")
	}

	if err := os.WriteFile(cfg.Model.ModelPath, []byte("weights v1"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := cfg.CacheTag()
	if err != nil {
		t.Fatalf("CacheTag failed: %v", err)
	}
	if !strings.HasPrefix(first, "learned:onehot:") {
		t.Errorf("Unexpected learned tag %q", first)
	}

	if err := os.WriteFile(cfg.Model.ModelPath, []byte("weights v2"), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := cfg.CacheTag()
	if err != nil {
		t.Fatalf("CacheTag failed: %v", err)
	}
	if first == second {
		t.Error("Retrained weights reuse the old cache tag")
	}
}
