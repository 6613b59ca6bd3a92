package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the shared configuration of the service and the training CLI.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Data      DataConfig      `yaml:"data"`
	Training  TrainingConfig  `yaml:"training"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ArtifactsConfig struct {
	ModelsDir  string `yaml:"models_dir"`
	ReportsDir string `yaml:"reports_dir"`
	Watch      bool   `yaml:"watch"`
}

type DataConfig struct {
	Insurance string `yaml:"insurance"`
	Diabetes  string `yaml:"diabetes"`
	Clean     bool   `yaml:"clean"`
}

type TrainingConfig struct {
	Seed      int64     `yaml:"seed"`
	Folds     int       `yaml:"folds"`
	Alphas    []float64 `yaml:"alphas"`
	Trees     int       `yaml:"trees"`
	TestRatio float64   `yaml:"test_ratio"`
	Workers   int       `yaml:"workers"`
}

// DatabaseConfig points at the training-run registry. An empty path disables it.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig sizes the prediction cache. Zero disables it.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Artifacts: ArtifactsConfig{
			ModelsDir:  "models",
			ReportsDir: "reports",
			Watch:      true,
		},
		Data: DataConfig{
			Insurance: "data/insurance.csv",
			Diabetes:  "data/diabetes.csv",
			Clean:     true,
		},
		Training: TrainingConfig{
			Seed:      42,
			Folds:     5,
			Alphas:    []float64{0.1, 1, 10},
			Trees:     300,
			TestRatio: 0.2,
		},
		Database: DatabaseConfig{Path: "tabpredict.db"},
		Cache:    CacheConfig{Size: 1024},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values of absent keys, and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Artifacts.ModelsDir == "" {
		errs = append(errs, errors.New("artifacts.models_dir is required"))
	}
	if c.Artifacts.ReportsDir == "" {
		errs = append(errs, errors.New("artifacts.reports_dir is required"))
	}
	if c.Training.Folds < 2 {
		errs = append(errs, fmt.Errorf("training.folds must be at least 2, got %d", c.Training.Folds))
	}
	if len(c.Training.Alphas) == 0 {
		errs = append(errs, errors.New("training.alphas must not be empty"))
	}
	for _, a := range c.Training.Alphas {
		if a <= 0 {
			errs = append(errs, fmt.Errorf("training.alphas: %v is not positive", a))
		}
	}
	if c.Training.Trees < 1 {
		errs = append(errs, fmt.Errorf("training.trees must be positive, got %d", c.Training.Trees))
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		errs = append(errs, fmt.Errorf("training.test_ratio %v must be in (0, 1)", c.Training.TestRatio))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size %d is negative", c.Cache.Size))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
