// Package modeltree builds running stores from model trees: nested maps
// that mix plain state with mutators, effects, computed values, raw
// reducers and listeners.
//
//	store, err := modeltree.New(ctx, modeltree.Model{
//		"count": 0,
//		"inc": modeltree.Mutator(func(d *modeltree.Draft, _ any) error {
//			d.Set("count", modeltree.Int(d.Get("count"))+1)
//			return nil
//		}),
//	})
//	_, err = store.MustCommand("inc").Call(ctx, nil)
//
// The types here are aliases of the internal packages, so values move
// freely between this package and the engine.
package modeltree

import (
	"context"
	"log/slog"

	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
)

type (
	Model   = model.Model
	Action  = model.Action
	Meta    = model.Meta
	Event   = model.Event
	Helpers = model.Helpers
	Target  = model.Target

	Draft  = state.Draft
	Object = state.Object
	Path   = state.Path

	Store        = engine.Store
	Command      = engine.Command
	Task         = engine.Task
	Option       = engine.Option
	Record       = engine.Record
	RuntimeError = engine.RuntimeError

	Storage       = persist.Storage
	PersistConfig = persist.Config
)

// Node constructors.
var (
	Mutator           = model.Mutator
	MutatorWithResult = model.MutatorWithResult
	Effect            = model.Effect
	Reducer           = model.Reducer
	Computed          = model.Computed
	MutatorOn         = model.MutatorOn
	EffectOn          = model.EffectOn
)

// Computed dependency selectors.
var (
	Local   = model.Local
	Root    = model.Root
	Dep     = model.Dep
	RootDep = model.RootDep
)

// Listener targets.
var (
	Ref     = model.Ref
	RootRef = model.RootRef
	Type    = model.Type
)

// Store options.
var (
	WithInjections       = engine.WithInjections
	WithInjection        = engine.WithInjection
	WithClock            = engine.WithClock
	WithCascadeGenerator = engine.WithCascadeGenerator
	WithPersistence      = engine.WithPersistence
	WithMaxCascadeSteps  = engine.WithMaxCascadeSteps
	WithObserver         = engine.WithObserver
)

// Merge strategies for PersistConfig.Merge.
const (
	MergeReplace = persist.MergeReplace
	MergeShallow = persist.MergeShallow
)

// Int coerces a numeric state value to int.
var Int = state.Int

// NewMemoryStorage returns an in-process Storage seeded with raw values.
var NewMemoryStorage = persist.NewMemoryStorage

// New compiles m and returns a running store.
func New(ctx context.Context, m Model, opts ...Option) (*Store, error) {
	return engine.New(ctx, m, opts...)
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return engine.WithLogger(l)
}

// Inject returns the named injection as T, or the zero value.
func Inject[T any](h Helpers, name string) T {
	return model.Inject[T](h, name)
}
