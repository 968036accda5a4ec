// Package config loads modeltree CLI settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/modeltree/internal/persist"
)

// Backends accepted by storage.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config holds application configuration.
type Config struct {
	Storage StorageConfig
	Persist PersistConfig
	Engine  EngineConfig
	Log     LogConfig
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string
	Path    string
	// Bucket is only used by the bolt backend.
	Bucket string
}

// PersistConfig holds the persistence options applied to demo models.
type PersistConfig struct {
	Key      string
	Debounce time.Duration
	Merge    string
}

// EngineConfig holds store options.
type EngineConfig struct {
	MaxCascadeSteps int `mapstructure:"max_cascade_steps"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "modeltree", "state.db"))
	v.SetDefault("storage.bucket", "modeltree")
	v.SetDefault("persist.key", "modeltree")
	v.SetDefault("persist.debounce", "0s")
	v.SetDefault("persist.merge", persist.MergeShallow.String())
	v.SetDefault("engine.max_cascade_steps", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	return v
}

// Default returns the built-in configuration, ignoring files and env.
func Default() Config {
	var c Config
	// Defaults are static values that always decode.
	_ = newViper().Unmarshal(&c)
	return c
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "modeltree", "config.yaml")
}

// Load reads configuration from file and env. Env var overrides use prefix
// MODELTREE_. An empty path falls back to MODELTREE_CONFIG, then to
// DefaultPath if it exists.
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv("MODELTREE_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("MODELTREE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; a missing or broken explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	backends := []string{BackendMemory, BackendSQLite, BackendBolt}
	if !slices.Contains(backends, c.Storage.Backend) {
		return fmt.Errorf("config: storage.backend %q: want one of %s", c.Storage.Backend, strings.Join(backends, ", "))
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required for the %s backend", c.Storage.Backend)
	}
	if _, ok := persist.ParseMergeStrategy(c.Persist.Merge); !ok {
		return fmt.Errorf("config: persist.merge %q: want replace or shallow", c.Persist.Merge)
	}
	if c.Persist.Debounce < 0 {
		return fmt.Errorf("config: persist.debounce must not be negative")
	}
	if c.Engine.MaxCascadeSteps < 0 {
		return fmt.Errorf("config: engine.max_cascade_steps must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// MergeStrategy returns the parsed persist.merge setting.
func (c Config) MergeStrategy() persist.MergeStrategy {
	m, _ := persist.ParseMergeStrategy(c.Persist.Merge)
	return m
}

// SlogLevel parses log.level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.bucket", cfg.Storage.Bucket)
	v.Set("persist.key", cfg.Persist.Key)
	v.Set("persist.debounce", cfg.Persist.Debounce.String())
	v.Set("persist.merge", cfg.Persist.Merge)
	v.Set("engine.max_cascade_steps", cfg.Engine.MaxCascadeSteps)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
