// Package config handles configuration loading and validation for taskflow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/taskflow/internal/core/styles"
)

// Config holds the application configuration.
type Config struct {
	DefaultCategory string           `yaml:"default_category"`
	Categories      []CategoryConfig `yaml:"categories"`
	Remote          RemoteConfig     `yaml:"remote"`
	Server          ServerConfig     `yaml:"server"`
	Database        DatabaseConfig   `yaml:"database"`
	Theme           string           `yaml:"theme"`
	DataDir         string           `yaml:"-"` // set by caller, not from config file
}

// CategoryConfig seeds a category into an empty store.
type CategoryConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// RemoteConfig points the engine at a remote taskflow service. An empty URL
// means the local sqlite store is used directly.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures `taskflow serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig tunes the sqlite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCategory: "Work",
		Categories: []CategoryConfig{
			{Name: "Work", Color: "#5B21B6"},
			{Name: "Personal", Color: "#10B981"},
			{Name: "Shopping", Color: "#F59E0B"},
			{Name: "Health", Color: "#EF4444"},
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.DefaultCategory == "" {
		c.DefaultCategory = defaults.DefaultCategory
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = defaults.Remote.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout cannot be negative")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("unknown theme %q, available: %s", c.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	seen := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("categories[%d]: duplicate name %q", i, cat.Name)
		}
		seen[cat.Name] = true
	}

	return nil
}

// UseRemote reports whether the engine should talk to a remote service
// instead of the local store.
func (c *Config) UseRemote() bool {
	return c.Remote.URL != ""
}
