package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree/internal/persist"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MODELTREE_CONFIG", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Storage.Backend)
	assert.Equal(t, "modeltree", c.Persist.Key)
	assert.Equal(t, time.Duration(0), c.Persist.Debounce)
	assert.Equal(t, persist.MergeShallow, c.MergeStrategy())
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "modeltree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: sqlite
  path: /tmp/state.db
persist:
  debounce: 250ms
  merge: replace
engine:
  max_cascade_steps: 64
`), 0o644))
	t.Setenv("MODELTREE_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, c.Storage.Backend)
	assert.Equal(t, "/tmp/state.db", c.Storage.Path)
	assert.Equal(t, 250*time.Millisecond, c.Persist.Debounce)
	assert.Equal(t, persist.MergeReplace, c.MergeStrategy())
	assert.Equal(t, 64, c.Engine.MaxCascadeSteps)

	level, err := c.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Persist: PersistConfig{Merge: "shallow"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = BackendSQLite }},
		{"bad merge", func(c *Config) { c.Persist.Merge = "deep" }},
		{"negative debounce", func(c *Config) { c.Persist.Debounce = -time.Second }},
		{"negative steps", func(c *Config) { c.Engine.MaxCascadeSteps = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Config{
		Storage: StorageConfig{Backend: BackendBolt, Path: "/var/lib/mt.db", Bucket: "prefs"},
		Persist: PersistConfig{Key: "app", Debounce: time.Second, Merge: "replace"},
		Engine:  EngineConfig{MaxCascadeSteps: 10},
		Log:     LogConfig{Level: "warn", Format: "json"},
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDefault(t *testing.T) {
	isolate(t)
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "modeltree", c.Storage.Bucket)
	assert.Equal(t, "text", c.Log.Format)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".config", "modeltree", "config.yaml"), DefaultPath())
}
