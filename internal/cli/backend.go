package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/modeltree/internal/config"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/store"
	"github.com/roach88/modeltree/internal/store/bolt"
)

// backend is a storage collaborator that can also enumerate its keys.
type backend interface {
	persist.Storage
	persist.Lister
}

// openBackend opens the configured storage. The returned close function
// must be called when done.
func openBackend(cfg config.StorageConfig, logger *slog.Logger) (backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return persist.NewMemoryStorage(nil), func() error { return nil }, nil
	case config.BackendSQLite:
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return st, st.Close, nil
	case config.BackendBolt:
		bs := bolt.NewStorage(cfg.Path, cfg.Bucket, logger)
		if err := bs.Open(); err != nil {
			return nil, nil, fmt.Errorf("open bolt storage: %w", err)
		}
		return bs, bs.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// openExisting is openBackend for read-only commands: the memory backend
// holds nothing and a missing file is an error rather than a new database.
func openExisting(cfg config.StorageConfig, logger *slog.Logger) (backend, func() error, error) {
	if cfg.Backend == config.BackendMemory {
		return nil, nil, NewExitError(ExitCommandError, "storage commands need the sqlite or bolt backend (set storage.backend)")
	}
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("storage file not found: %s", cfg.Path))
	}
	b, closeFn, err := openBackend(cfg, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	return b, closeFn, nil
}

// openJournal opens the SQLite action journal at path. An empty path
// disables journaling and returns a nil store.
func openJournal(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func closeLogged(logger *slog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("error closing "+what, "error", err)
	}
}

// readKey fetches one stored value.
func readKey(ctx context.Context, b persist.Storage, key string) ([]byte, error) {
	raw, err := b.Get(ctx, key)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("key %q not found", key), err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read storage", err)
	}
	return raw, nil
}
