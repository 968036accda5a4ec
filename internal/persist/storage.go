package persist

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNotFound is returned by Storage.Get for keys that were never written.
var ErrNotFound = errors.New("persist: key not found")

// Storage is the key-value collaborator. Values are opaque serialized
// bytes. Implementations must be safe for concurrent use.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Lister is implemented by storages that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStorage is an in-process Storage, used by tests and the CLI's
// memory backend.
type MemoryStorage struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
}

// NewMemoryStorage returns a storage pre-populated with seed.
func NewMemoryStorage(seed map[string]string) *MemoryStorage {
	m := &MemoryStorage{data: make(map[string][]byte, len(seed))}
	for k, v := range seed {
		m.data[k] = []byte(v)
	}
	return m
}

// Get implements Storage.
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	m.writes++
	return nil
}

// Keys implements Lister.
func (m *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Writes reports how many Set calls succeeded.
func (m *MemoryStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
