// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Theme   ThemeConfig   `yaml:"theme"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects where favorites and the theme are persisted.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // memory, file, sqlite, none
	Path         string `yaml:"path"`
	PollInterval string `yaml:"poll_interval"` // sqlite only
}

type ThemeConfig struct {
	// DefaultHint is used when a client sends no colour-scheme hint.
	DefaultHint string `yaml:"default_hint"`
}

// SyncConfig tunes the tab session hub.
type SyncConfig struct {
	Backlog     int    `yaml:"backlog"`
	IdleTimeout string `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Backend:      BackendFile,
			Path:         filepath.Join("data", "wiki.json"),
			PollInterval: "1s",
		},
		Sync: SyncConfig{
			Backlog:     64,
			IdleTimeout: "10m",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies WIKI_* environment variables. PORT is honoured
// for container platforms that only set that.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := os.Getenv("WIKI_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WIKI_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("WIKI_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("WIKI_THEME_HINT"); v != "" {
		c.Theme.DefaultHint = v
	}
	if v := os.Getenv("WIKI_SYNC_BACKLOG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.Backlog = n
		}
	}
	if v := os.Getenv("WIKI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// GetPollInterval returns the sqlite poll interval.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Storage.PollInterval, time.Second)
}

// GetIdleTimeout returns how long a detached tab session is kept.
func (c *Config) GetIdleTimeout() time.Duration {
	return parseDuration(c.Sync.IdleTimeout, 10*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendNone:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for the %s backend", ErrInvalid, c.Storage.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if c.Sync.Backlog < 0 {
		return fmt.Errorf("%w: sync.backlog must not be negative", ErrInvalid)
	}
	for name, s := range map[string]string{
		"storage.poll_interval": c.Storage.PollInterval,
		"sync.idle_timeout":     c.Sync.IdleTimeout,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}
