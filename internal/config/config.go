// Package config loads the heapchart server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ValidBackends lists the supported storage backends.
var ValidBackends = []string{BackendMemory, BackendBadger, BackendSQLite}

// ValidLogFormats lists the supported log output formats.
var ValidLogFormats = []string{"text", "json"}

// Config holds all heapchart configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend string       `yaml:"backend"` // memory, badger, sqlite
	Badger  BadgerConfig `yaml:"badger"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	Dir        string `yaml:"dir"`
	GCInterval string `yaml:"gc_interval"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	Cookie string `yaml:"cookie"`
	TTL    string `yaml:"ttl"`
	Secure bool   `yaml:"secure"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen: "0.0.0.0:22000",
		Storage: StorageConfig{
			Backend: BackendMemory,
			Badger: BadgerConfig{
				Dir:        "data/badger",
				GCInterval: "5m",
			},
			SQLite: SQLiteConfig{
				Path: "data/heapchart.db",
			},
		},
		Session: SessionConfig{
			Cookie: "SESSION",
			TTL:    "168h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if listen := os.Getenv("HEAPCHART_LISTEN"); listen != "" {
		c.Listen = listen
	}
	if backend := os.Getenv("HEAPCHART_STORAGE"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetGCInterval returns the Badger GC interval. "off" disables GC.
func (c *Config) GetGCInterval() time.Duration {
	if strings.EqualFold(c.Storage.Badger.GCInterval, "off") {
		return -1
	}
	d, err := time.ParseDuration(c.Storage.Badger.GCInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address not configured")
	}

	if !slices.Contains(ValidBackends, c.Storage.Backend) {
		return fmt.Errorf("invalid storage backend: %q (valid: %v)", c.Storage.Backend, ValidBackends)
	}
	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.Badger.Dir == "" {
			return fmt.Errorf("storage.badger.dir not configured")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path not configured")
		}
	}

	if c.Session.TTL != "" {
		if _, err := time.ParseDuration(c.Session.TTL); err != nil {
			return fmt.Errorf("invalid session ttl %q: %w", c.Session.TTL, err)
		}
	}
	if c.Session.Cookie == "" {
		return fmt.Errorf("session cookie name not configured")
	}

	if !slices.Contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	return nil
}
