package persist

import (
	"slices"
	"time"

	"github.com/roach88/modeltree/internal/state"
)

// MergeStrategy decides how hydrated values combine with defaults.
type MergeStrategy int

const (
	// MergeReplace uses the stored value as-is.
	MergeReplace MergeStrategy = iota
	// MergeShallow overlays the stored object's keys onto the default
	// object. Non-object values are replaced.
	MergeShallow
)

func (m MergeStrategy) String() string {
	if m == MergeShallow {
		return "shallow"
	}
	return "replace"
}

// ParseMergeStrategy accepts "replace" and "shallow".
func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	switch s {
	case "", "replace":
		return MergeReplace, true
	case "shallow":
		return MergeShallow, true
	}
	return MergeReplace, false
}

// Transform rewrites one key's value on the way in (after reading) and out
// (before writing). Either function may be nil.
type Transform struct {
	Key string
	In  func(v any) (any, error)
	Out func(v any) (any, error)
}

// Config describes one persisted subtree.
type Config struct {
	// Key prefixes every storage key as "<Key>:<path>". Empty means no
	// prefix.
	Key string
	// Path is the dotted path of the persisted subtree. Empty is the root.
	Path string
	// Allow lists the keys to persist; empty allows every key.
	Allow []string
	// Deny lists keys never persisted. Deny wins over Allow.
	Deny       []string
	Merge      MergeStrategy
	Transforms []Transform
	// Debounce delays writes until no new snapshot arrived for this long.
	// Zero writes on every snapshot.
	Debounce time.Duration
	// Schema is optional CUE constraining the hydrated subtree object, for
	// example `theme?: "light" | "dark"`.
	Schema string
}

func (c Config) allowed(key string) bool {
	if slices.Contains(c.Deny, key) {
		return false
	}
	return len(c.Allow) == 0 || slices.Contains(c.Allow, key)
}

func (c Config) transform(key string) (Transform, bool) {
	for _, t := range c.Transforms {
		if t.Key == key {
			return t, true
		}
	}
	return Transform{}, false
}

// StorageKey is the storage key for key under the persisted subtree.
func (c Config) StorageKey(key string) string {
	k := state.ParsePath(c.Path).Child(key).String()
	if c.Key == "" {
		return k
	}
	return c.Key + ":" + k
}
