package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// Config represents the harvestcycle configuration file.
type Config struct {
	State    StateConfig    `yaml:"state"`
	Logging  LoggingConfig  `yaml:"logging"`
	AutoSave AutoSaveConfig `yaml:"autosave"`
	Retry    RetryConfig    `yaml:"retry"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Watch    WatchConfig    `yaml:"watch"`
}

// StateConfig locates the overview state file.
type StateConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format,omitempty"` // json|yaml|xml; empty derives it from the extension
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// AutoSaveConfig controls periodic saves by the daemon.
type AutoSaveConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables autosave
}

// RetryConfig controls retries of failed saves.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// MetricsConfig controls the Prometheus endpoint of the daemon.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// WatchConfig controls change notifications for the state file.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at configPath. Variables from .env are loaded
// first (without overriding the process environment) and ${VAR} references
// in the file are expanded.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").WithContext("path", configPath).Build()
		}
		return nil, errors.ConfigError("failed to read config file").WithCause(err).WithContext("path", configPath).Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return nil, ce.WithContext("path", configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration, applies defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := newConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.ConfigError("failed to unmarshal config").WithCause(err).Build()
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env and .env.local when present. Missing files are not an error.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", envPath, err)
		}
	}
}

// newConfig presets fields whose zero value is meaningful, so an explicit 0 in the file survives.
func newConfig() *Config {
	return &Config{Retry: RetryConfig{MaxRetries: 2}}
}

func applyDefaults(cfg *Config) {
	if cfg.State.Path == "" {
		cfg.State.Path = "overview.json"
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	}
	if cfg.Retry.Initial <= 0 {
		cfg.Retry.Initial = time.Second
	}
	if cfg.Retry.Max <= 0 {
		cfg.Retry.Max = 30 * time.Second
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
