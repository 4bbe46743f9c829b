// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when --config is not set.
const DefaultPath = "dbedit.yaml"

// Config is the root configuration structure.
type Config struct {
	Editor  EditorConfig  `yaml:"editor"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EditorConfig configures record editing and saving.
type EditorConfig struct {
	// StrictNumbers rejects non-digit text in integer fields instead of
	// saving it as 0.
	StrictNumbers bool `yaml:"strict_numbers"`

	// Backup keeps <file>.bak when a document is overwritten.
	Backup bool `yaml:"backup"`

	// PageSize limits list output; 0 shows every row.
	PageSize int `yaml:"page_size"`

	// Profile forces a profile ("item", "mob", ...) instead of detecting it
	// from Header.Type. "auto" or empty detects.
	Profile string `yaml:"profile"`

	// ProfileDir holds extra profile definitions.
	ProfileDir string `yaml:"profile_dir,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration from defaults and environment variables.
//
// Environment variables:
//
//	DBEDIT_STRICT_NUMBERS   - Reject non-digit integer input (default: false)
//	DBEDIT_BACKUP           - Keep a .bak copy on save (default: false)
//	DBEDIT_PAGE_SIZE        - Rows per list page, 0 for all (default: 0)
//	DBEDIT_PROFILE          - Force a profile: item, mob or auto (default: auto)
//	DBEDIT_PROFILE_DIR      - Directory of extra profile definitions
//	DBEDIT_SERVER_ADDR      - HTTP API listen address (default: 127.0.0.1:8765)
//	DBEDIT_LOG_LEVEL        - Log level: debug, info, warn, error (default: warn)
//	DBEDIT_LOG_FORMAT       - Log format: json or console (default: console)
//	DBEDIT_METRICS_ENABLED  - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to defaults
// with environment overrides otherwise. The configuration file is optional.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies DBEDIT_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Editor configuration
	if v := os.Getenv("DBEDIT_STRICT_NUMBERS"); v != "" {
		cfg.Editor.StrictNumbers = parseBool(v)
	}
	if v := os.Getenv("DBEDIT_BACKUP"); v != "" {
		cfg.Editor.Backup = parseBool(v)
	}
	if v := os.Getenv("DBEDIT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Editor.PageSize = n
		}
	}
	if v := os.Getenv("DBEDIT_PROFILE"); v != "" {
		cfg.Editor.Profile = v
	}
	if v := os.Getenv("DBEDIT_PROFILE_DIR"); v != "" {
		cfg.Editor.ProfileDir = v
	}

	// Server configuration
	if v := os.Getenv("DBEDIT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DBEDIT_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("DBEDIT_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Logging configuration
	if v := os.Getenv("DBEDIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DBEDIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("DBEDIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("DBEDIT_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Editor.Profile == "" {
		cfg.Editor.Profile = "auto"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8765"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Editor.PageSize < 0 {
		return fmt.Errorf("editor.page_size must not be negative, got %d", cfg.Editor.PageSize)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level %q is not a valid level", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
