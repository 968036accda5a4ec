package engine

import (
	"log/slog"
	"maps"

	"github.com/roach88/modeltree/internal/persist"
)

// Option configures a Store.
type Option func(*Store)

// WithInjections merges deps into the injections handed to effects.
func WithInjections(deps map[string]any) Option {
	return func(s *Store) {
		maps.Copy(s.injections, deps)
	}
}

// WithInjection adds one named injection.
func WithInjection(name string, dep any) Option {
	return func(s *Store) {
		s.injections[name] = dep
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the logical clock.
func WithClock(c SequenceClock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithCascadeGenerator replaces the cascade token generator.
// Default: UUIDv7Generator.
func WithCascadeGenerator(g CascadeTokenGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.tokens = g
		}
	}
}

// WithPersistence hydrates from and snapshots to storage. May be given
// once per persisted subtree.
func WithPersistence(storage persist.Storage, cfg persist.Config) Option {
	return func(s *Store) {
		s.persistSpecs = append(s.persistSpecs, persistSpec{storage: storage, cfg: cfg})
	}
}

// WithMaxCascadeSteps bounds the actions processed per critical section.
// Zero, the default, leaves cascades unbounded.
func WithMaxCascadeSteps(n int) Option {
	return func(s *Store) {
		s.maxSteps = n
	}
}

// Record describes one processed action. Observers receive records in
// processing order while the dispatch mutex is held, so they must not call
// back into the store.
type Record struct {
	Seq     int64
	Cascade string
	Depth   int
	Type    string
	Payload any
	Result  any
	Error   string
	// Changed reports whether the action produced a new state tree.
	Changed bool
	// Failed is set when the action's handler failed and nothing was
	// committed.
	Failed bool
}

// Observer receives every processed action.
type Observer func(Record)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

type persistSpec struct {
	storage persist.Storage
	cfg     persist.Config
}
