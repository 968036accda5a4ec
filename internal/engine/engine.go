package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/computed"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
)

// Store is a running model tree.
//
// Thread-safety model:
//   - Dispatch, Call, Start: safe from any goroutine; serialized by mu
//   - State, Version, Computed: lock-free reads of the published snapshot
//   - Subscribe: safe from any goroutine; callbacks may dispatch
//
// INVARIANTS:
//   - The snapshot changes only inside the dispatch critical section
//   - A failed top-level handler commits nothing
//   - Listener registry and command tree never change after New
type Store struct {
	compiled *compiler.Compiled
	computed *computed.Engine
	commands *Commands

	mu       sync.Mutex
	snapshot atomic.Pointer[snapshot]
	clock    SequenceClock
	tokens   CascadeTokenGenerator
	cycles   *CycleDetector
	maxSteps int

	injections map[string]any
	logger     *slog.Logger
	observers  []Observer

	subMu    sync.Mutex
	subs     map[int]func(state.Object)
	nextSub  int
	notifyMu sync.Mutex
	notified int64
	pending  *snapshot
	draining bool

	persistSpecs []persistSpec
	persisters   []*persist.Persister
	hydrateErr   error

	effects inflight
	closed  atomic.Bool
	// unpersisted is set once Close has drained effects; later changes stay
	// in memory only.
	unpersisted atomic.Bool
}

type snapshot struct {
	state   state.Object
	version int64
}

// New compiles m and returns a ready store.
//
// Configuration errors (compiler.ConfigErrors, invalid persistence schema)
// are returned before any dispatch is possible. Hydration failures are
// not: the store starts from the declared defaults and HydrateErr reports
// what went wrong.
func New(ctx context.Context, m model.Model, opts ...Option) (*Store, error) {
	c, err := compiler.Compile(m)
	if err != nil {
		return nil, err
	}
	return NewFromCompiled(ctx, c, opts...)
}

// NewFromCompiled builds a store from an already compiled model.
func NewFromCompiled(ctx context.Context, c *compiler.Compiled, opts ...Option) (*Store, error) {
	s := &Store{
		compiled:   c,
		computed:   computed.New(c),
		clock:      NewClock(),
		tokens:     UUIDv7Generator{},
		cycles:     NewCycleDetector(),
		injections: make(map[string]any),
		logger:     slog.Default(),
		subs:       make(map[int]func(state.Object)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.commands = &Commands{store: s, node: c.Commands}

	for _, w := range c.Warnings {
		s.logger.Warn("listener cycle", "path", w.Path, "message", w.Message)
	}

	initial := c.InitialState
	var hydrateErrs []error
	for _, ps := range s.persistSpecs {
		p, err := persist.New(ps.storage, ps.cfg, s.logger)
		if err != nil {
			return nil, err
		}
		hydrated, herr := p.Hydrate(ctx, initial)
		if herr != nil {
			s.logger.Error("hydration failed, using defaults", "key", ps.cfg.StorageKey("*"), "error", herr)
			hydrateErrs = append(hydrateErrs, herr)
		} else {
			initial = hydrated
		}
		s.persisters = append(s.persisters, p)
	}
	s.hydrateErr = errors.Join(hydrateErrs...)
	s.snapshot.Store(&snapshot{state: initial})

	for _, p := range s.persisters {
		p.Prime(initial)
		p.Start()
	}

	s.logger.Debug("store ready",
		"mutators", len(c.Mutators),
		"effects", len(c.Effects),
		"computed", len(c.Computeds),
		"listeners", len(c.Listeners))
	return s, nil
}

// State returns the current state tree. The tree is shared and MUST NOT be
// mutated.
func (s *Store) State() state.Object {
	return s.snapshot.Load().state
}

// Version counts committed state changes.
func (s *Store) Version() int64 {
	return s.snapshot.Load().version
}

// HydrateErr returns the hydration failure, if any.
func (s *Store) HydrateErr() error {
	return s.hydrateErr
}

// Compiled returns the compiled model backing the store.
func (s *Store) Compiled() *compiler.Compiled {
	return s.compiled
}

// Computed reads the computed value at the absolute dotted path.
func (s *Store) Computed(path string) (any, error) {
	return s.computed.Get(path, s.State())
}

// ComputedEvaluations reports how often a computed node has been evaluated.
func (s *Store) ComputedEvaluations(path string) int {
	return s.computed.Evaluations(path)
}

// Commands returns the root of the command tree.
func (s *Store) Commands() *Commands {
	return s.commands
}

// Command looks up a command by absolute dotted path.
func (s *Store) Command(path string) (*Command, error) {
	return s.commands.Lookup(path)
}

// MustCommand is Command that panics on unknown paths.
func (s *Store) MustCommand(path string) *Command {
	c, err := s.Command(path)
	if err != nil {
		panic(err)
	}
	return c
}

// ActionTypes returns every synthesized action type, sorted.
func (s *Store) ActionTypes() []string {
	return s.compiled.ActionTypes()
}

// ListenerInfo describes one registry entry.
type ListenerInfo struct {
	Path string `json:"path"`
	// Kind is "mutator" or "effect".
	Kind string `json:"kind"`
	// Declared are the targets as written; Targets the resolved types.
	Declared []string `json:"declared"`
	Targets  []string `json:"targets"`
	// Emits are the action types the listener dispatches.
	Emits []string `json:"emits"`
}

// Listeners returns the listener registry in registration order.
func (s *Store) Listeners() []ListenerInfo {
	out := make([]ListenerInfo, 0, len(s.compiled.Listeners))
	for _, e := range s.compiled.Listeners {
		l := e.Listener()
		info := ListenerInfo{
			Path:    e.Path.String(),
			Kind:    "mutator",
			Targets: append([]string(nil), e.Targets...),
			Emits:   append([]string(nil), e.Types...),
		}
		if l.IsEffect() {
			info.Kind = "effect"
		}
		for _, t := range l.Targets() {
			info.Declared = append(info.Declared, t.String())
		}
		out = append(out, info)
	}
	return out
}

// Subscribe registers fn to run after a top-level dispatch that changed
// state. The returned function unsubscribes; calling it more than once is
// harmless.
//
// Callbacks run one at a time, on the goroutine of a dispatch that changed
// state, after that dispatch released the store. They may call commands or
// Dispatch: the resulting notification is delivered once the current round
// of callbacks returns, on the same goroutine. When several changes land
// while callbacks are running, only the newest state is delivered.
func (s *Store) Subscribe(fn func(state.Object)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// notify queues snap for subscribers. The first caller to find no delivery
// in progress drains the queue; everyone else returns immediately. Snapshots
// not newer than one already delivered are dropped.
func (s *Store) notify(snap *snapshot) {
	s.notifyMu.Lock()
	if s.pending == nil || snap.version > s.pending.version {
		s.pending = snap
	}
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true

	idle := false
	defer func() {
		// A panicking subscriber must not wedge later deliveries.
		if !idle {
			s.notifyMu.Lock()
			s.draining = false
			s.notifyMu.Unlock()
		}
	}()

	for {
		next := s.pending
		s.pending = nil
		if next == nil {
			s.draining = false
			idle = true
			s.notifyMu.Unlock()
			return
		}
		if next.version <= s.notified {
			continue
		}
		s.notified = next.version
		s.notifyMu.Unlock()

		for _, fn := range s.subscribers() {
			fn(next.state)
		}
		s.notifyMu.Lock()
	}
}

func (s *Store) subscribers() []func(state.Object) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ids := slices.Sorted(maps.Keys(s.subs))
	fns := make([]func(state.Object), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}

// WaitEffects blocks until no effect is running or ctx is done.
func (s *Store) WaitEffects(ctx context.Context) error {
	return s.effects.wait(ctx)
}

// Flush writes pending persistence snapshots now.
func (s *Store) Flush(ctx context.Context) error {
	var errs []error
	for _, p := range s.persisters {
		errs = append(errs, p.Flush(ctx))
	}
	return errors.Join(errs...)
}

// Close waits for in-flight effects (bounded by ctx), then flushes and stops
// persistence. Changes landed by effects finishing during the wait are
// persisted. Dispatch keeps working after Close returns, but nothing is
// persisted any more.
func (s *Store) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	var errs []error
	if err := s.WaitEffects(ctx); err != nil {
		s.logger.Warn("closing with effects still running", "error", err)
		errs = append(errs, err)
	}
	s.unpersisted.Store(true)
	for _, p := range s.persisters {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
