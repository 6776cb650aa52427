// Package config loads relatos configuration from a YAML file with
// RELATOS_* environment overrides. Command-line flags are applied on top by
// the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Text     TextConfig     `yaml:"text"`
	Training TrainingConfig `yaml:"training"`
	Predict  PredictConfig  `yaml:"predict"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// ModelConfig locates the model artifact.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// TextConfig selects the text resources. Empty file paths use the embedded
// tables for Language.
type TextConfig struct {
	Language      string `yaml:"language"`
	Stemmer       string `yaml:"stemmer"`
	StopwordsFile string `yaml:"stopwordsFile"`
	RulesFile     string `yaml:"rulesFile"`
}

// TrainingConfig controls vectorization, smoothing and evaluation.
type TrainingConfig struct {
	MaxFeatures int              `yaml:"maxFeatures"`
	Alpha       float64          `yaml:"alpha"`
	Workers     int              `yaml:"workers"`
	Evaluation  EvaluationConfig `yaml:"evaluation"`
}

// EvaluationConfig picks the evaluation policy and its parameters.
type EvaluationConfig struct {
	Policy     string  `yaml:"policy"`
	Ratio      float64 `yaml:"ratio"`
	Seed       uint64  `yaml:"seed"`
	Stratified bool    `yaml:"stratified"`
	Folds      int     `yaml:"folds"`
}

// PredictConfig controls the prediction path.
type PredictConfig struct {
	Workers int `yaml:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// RedisConfig holds the optional prediction cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// FetchConfig bounds reads of CLI inputs.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxFileBytes int64         `yaml:"maxFileBytes"`
}

// Load reads a YAML config file (if path is not empty) over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path: "models/relatos.json",
		},
		Text: TextConfig{
			Language: "portuguese",
			Stemmer:  "rslp",
		},
		Training: TrainingConfig{
			MaxFeatures: 1000,
			Alpha:       1.0,
			Evaluation: EvaluationConfig{
				Policy: "holdout",
				Ratio:  0.2,
				Seed:   42,
				Folds:  5,
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    5 * 1024 * 1024,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxFileBytes: 10 * 1024 * 1024,
		},
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Path) == "" {
		return fmt.Errorf("model.path must not be empty")
	}
	if c.Training.MaxFeatures <= 0 {
		return fmt.Errorf("training.maxFeatures must be positive, got %d", c.Training.MaxFeatures)
	}
	if c.Training.Alpha <= 0 {
		return fmt.Errorf("training.alpha must be positive, got %v", c.Training.Alpha)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// applyEnvOverrides reads RELATOS_* environment variables and overrides the
// corresponding fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELATOS_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("RELATOS_TEXT_LANGUAGE"); v != "" {
		cfg.Text.Language = v
	}
	if v := os.Getenv("RELATOS_TEXT_STEMMER"); v != "" {
		cfg.Text.Stemmer = v
	}
	if v := os.Getenv("RELATOS_TEXT_STOPWORDS_FILE"); v != "" {
		cfg.Text.StopwordsFile = v
	}
	if v := os.Getenv("RELATOS_TEXT_RULES_FILE"); v != "" {
		cfg.Text.RulesFile = v
	}
	if v := os.Getenv("RELATOS_TRAINING_MAX_FEATURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Training.MaxFeatures = n
		}
	}
	if v := os.Getenv("RELATOS_TRAINING_POLICY"); v != "" {
		cfg.Training.Evaluation.Policy = v
	}
	if v := os.Getenv("RELATOS_TRAINING_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Training.Evaluation.Seed = n
		}
	}
	if v := os.Getenv("RELATOS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RELATOS_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("RELATOS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RELATOS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RELATOS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RELATOS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RELATOS_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
