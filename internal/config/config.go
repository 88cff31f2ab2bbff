// Package config loads the run configuration. Every path, size and policy
// the pipeline needs travels in one Config value; there are no ambient
// globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tokenmill run configuration.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Store      StoreConfig      `yaml:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Trim       TrimConfig       `yaml:"trim"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CorpusConfig locates the input universe.
type CorpusConfig struct {
	Manifest string `yaml:"manifest"` // newline-delimited relative feature-file paths
	Root     string `yaml:"root"`     // directory the manifest paths are relative to
}

// CheckpointConfig selects and parameterizes the checkpoint log driver.
type CheckpointConfig struct {
	Driver   string   `yaml:"driver"` // file, redis (default: file)
	Path     string   `yaml:"path"`   // file driver
	Addrs    []string `yaml:"addrs"`  // redis driver
	Password string   `yaml:"password"`
	Key      string   `yaml:"key"`
}

// StoreConfig locates the per-worker columnar stores.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// PipelineConfig sizes the worker pool and the batches. Smaller batches
// lose less work per failure; larger ones amortize store-append overhead.
type PipelineConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// TrimConfig is the asymmetric sparse-token trim: only the dominant
// high-volume language is thinned by dropping tokens whose batch-local
// corpus count falls below MinCount. Heuristic, configurable policy; an
// empty Language disables trimming.
type TrimConfig struct {
	Language string `yaml:"language"`
	MinCount int64  `yaml:"min_count"`
}

// HTTPConfig holds the status/metrics server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // per-worker log files; empty disables them
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = "file"
	}
	if c.Checkpoint.Key == "" {
		c.Checkpoint.Key = "tokenmill:checkpoint"
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 100
	}
	if c.Trim.MinCount <= 0 {
		c.Trim.MinCount = 2
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 9090
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Corpus.Manifest == "" {
		return fmt.Errorf("corpus.manifest is required")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	switch c.Checkpoint.Driver {
	case "file":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the file driver")
		}
	case "redis":
		if len(c.Checkpoint.Addrs) == 0 {
			return fmt.Errorf("checkpoint.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("checkpoint.driver must be \"file\" or \"redis\", got %q", c.Checkpoint.Driver)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSuffix(strings.TrimPrefix(string(m), "${"), "}")
		return []byte(os.Getenv(name))
	})
}
