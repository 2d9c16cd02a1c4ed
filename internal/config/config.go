package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/thyrook/abeval/internal/data"
	"github.com/thyrook/abeval/internal/eval"
	"github.com/thyrook/abeval/internal/model"
	"github.com/thyrook/abeval/internal/search"
)

// Config represents the application configuration
type Config struct {
	AppName   string          `json:"app_name"`
	Version   string          `json:"version"`
	Search    SearchConfig    `json:"search"`
	Evaluator EvaluatorConfig `json:"evaluator"`
	Model     ModelConfig     `json:"model"`
	Cache     CacheConfig     `json:"cache"`
	Data      DataConfig      `json:"data"`
	Logging   LoggingConfig   `json:"logging"`
}

// SearchConfig contains move selection settings
type SearchConfig struct {
	Depth     int    `json:"depth"`
	Algorithm string `json:"algorithm"`
	Parallel  bool   `json:"parallel"`
	Workers   int    `json:"workers"`
}

// EvaluatorConfig selects the leaf evaluator
type EvaluatorConfig struct {
	Strategy string `json:"strategy"`
	Encoding string `json:"encoding"`
}

// ModelConfig contains value network settings
type ModelConfig struct {
	HiddenSizes []int  `json:"hidden_sizes"`
	ModelPath   string `json:"model_path"`
}

// CacheConfig contains the persistent evaluation cache settings
type CacheConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// ModelTag separates scores from different evaluators in one cache file.
	// Empty derives it from the evaluator, see CacheTag.
	ModelTag string `json:"model_tag"`
}

// DataConfig contains annotated game ingestion settings
type DataConfig struct {
	DatasetPath string  `json:"dataset_path"`
	ClipRange   float64 `json:"clip_range"`
	MateScore   float64 `json:"mate_score"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		AppName: "abeval",
		Version: "0.1.0",
		Search: SearchConfig{
			Depth:     3,
			Algorithm: string(search.AlphaBeta),
			Parallel:  false,
			Workers:   4,
		},
		Evaluator: EvaluatorConfig{
			Strategy: string(eval.StrategyMaterial),
			Encoding: string(data.EncodingOneHot),
		},
		Model: ModelConfig{
			HiddenSizes: []int{180, 180, 180},
			ModelPath:   "models/value.gob",
		},
		Cache: CacheConfig{
			Enabled: false,
			Path:    "data/evalcache.db",
		},
		Data: DataConfig{
			DatasetPath: "data/positions.db",
			ClipRange:   15,
			MateScore:   100,
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  "",
		},
	}
}

// Load reads and parses the configuration file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads the configuration, falling back to defaults only when
// the file does not exist. A file that exists but cannot be read or parsed is an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, raw, 0644)
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if c.Search.Depth < 1 {
		return fmt.Errorf("search depth must be at least 1, got %d", c.Search.Depth)
	}
	if _, err := search.ParseAlgorithm(c.Search.Algorithm); err != nil {
		return err
	}
	if c.Search.Parallel && c.Search.Workers < 1 {
		return fmt.Errorf("parallel search needs at least 1 worker, got %d", c.Search.Workers)
	}

	strategy, err := eval.ParseStrategy(c.Evaluator.Strategy)
	if err != nil {
		return err
	}
	if _, err := data.ParseEncoding(c.Evaluator.Encoding); err != nil {
		return err
	}
	if strategy == eval.StrategyLearned && c.Model.ModelPath == "" {
		return fmt.Errorf("learned evaluator requires model_path")
	}

	for _, h := range c.Model.HiddenSizes {
		if h <= 0 {
			return fmt.Errorf("invalid hidden layer size: %d", h)
		}
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache enabled without a path")
	}

	if c.Data.ClipRange < 0 {
		return fmt.Errorf("clip range must not be negative, got %v", c.Data.ClipRange)
	}
	if c.Data.MateScore <= 0 {
		return fmt.Errorf("mate score must be positive, got %v", c.Data.MateScore)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// EnsureDirectories creates the parent directories of every configured file
func (c *Config) EnsureDirectories() error {
	paths := []string{c.Model.ModelPath, c.Data.DatasetPath}
	if c.Cache.Enabled {
		paths = append(paths, c.Cache.Path)
	}
	if c.Logging.Path != "" {
		paths = append(paths, c.Logging.Path)
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}

// CacheTag returns the key prefix for cached evaluations. An explicit
// model_tag wins; otherwise the material evaluator uses its name and the
// learned evaluator is tagged with the fingerprint of its weight file.
func (c *Config) CacheTag() (string, error) {
	if c.Cache.ModelTag != "" {
		return c.Cache.ModelTag, nil
	}

	strategy, err := eval.ParseStrategy(c.Evaluator.Strategy)
	if err != nil {
		return "", err
	}
	if strategy != eval.StrategyLearned {
		return string(strategy), nil
	}

	fp, err := model.Fingerprint(c.Model.ModelPath)
	if err != nil {
		return "", fmt.Errorf("cache tag: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s", strategy, c.Evaluator.Encoding, fp), nil
}
