package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in a workspace directory.
const FileName = ".inheritorsconfig"

// Config holds user-overridable settings.
type Config struct {
	Search SearchConfig `yaml:"search"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// SearchConfig holds defaults for inheritor searches.
type SearchConfig struct {
	// CheckDeep searches transitive inheritors. Default: true.
	CheckDeep *bool `yaml:"check_deep"`

	// CheckInheritance re-verifies every index candidate. Default: false.
	CheckInheritance *bool `yaml:"check_inheritance"`

	// Limit caps results returned by tools. Default: 500.
	Limit *int `yaml:"limit"`
}

// StoreConfig selects where and how databases are opened.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo). Default: sqlite.
	Driver string `yaml:"driver"`

	// Dir overrides the database directory. Default: ~/.cache/codebase-inheritors.
	Dir string `yaml:"dir"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{}
}

// Load reads FileName from the given directory.
// Returns default config if the file doesn't exist.
func Load(dir string) *Config {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads a config file at path. Missing or invalid files yield the
// defaults.
func LoadFile(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("config.invalid", "path", path, "err", err)
		return Default()
	}
	return cfg
}

// EffectiveCheckDeep returns the configured deep-search default, or true.
func (c *Config) EffectiveCheckDeep() bool {
	if c.Search.CheckDeep != nil {
		return *c.Search.CheckDeep
	}
	return true
}

// EffectiveCheckInheritance returns the configured verification default, or false.
func (c *Config) EffectiveCheckInheritance() bool {
	if c.Search.CheckInheritance != nil {
		return *c.Search.CheckInheritance
	}
	return false
}

// EffectiveLimit returns the configured result limit, or 500. Non-positive
// values fall back to the default.
func (c *Config) EffectiveLimit() int {
	if c.Search.Limit != nil && *c.Search.Limit > 0 {
		return *c.Search.Limit
	}
	return 500
}

// EffectiveDriver returns the configured SQLite driver name, or "sqlite".
func (c *Config) EffectiveDriver() string {
	switch c.Store.Driver {
	case "sqlite3", "cgo":
		return "sqlite3"
	default:
		return "sqlite"
	}
}

// EffectiveLevel parses the configured log level, defaulting to info.
func (c *Config) EffectiveLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.EffectiveLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
