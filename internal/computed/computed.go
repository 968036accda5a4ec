// Package computed implements the memoized computed-value engine.
//
// Each computed node owns one cache entry holding the dependency values
// from its last evaluation and the result. On read, every dependency
// selector is evaluated against the current state and compared slot by
// slot with state.Same; only a mismatch recomputes. Nothing is invalidated
// on dispatch, so an unread computed never recomputes.
package computed

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

var (
	// ErrUnknown is returned for paths that do not name a computed node.
	ErrUnknown = errors.New("no computed value at path")
	// ErrCycle is returned when computed values depend on each other.
	ErrCycle = errors.New("computed dependency cycle")
)

// Engine caches computed values for one store.
type Engine struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	e      *compiler.Entry
	valid  bool
	deps   []any
	result any
	evals  int
}

// New creates an engine for every computed node in c.
func New(c *compiler.Compiled) *Engine {
	eng := &Engine{entries: make(map[string]*entry, len(c.Computeds))}
	for _, e := range c.Computeds {
		eng.entries[e.Path.String()] = &entry{e: e}
	}
	return eng
}

// Get returns the computed value at the absolute dotted path, evaluated
// against root.
func (g *Engine) Get(path string, root state.Object) (any, error) {
	return g.get(state.ParsePath(path), root, nil)
}

// Evaluations reports how many times the node's function has run.
func (g *Engine) Evaluations(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ent, ok := g.entries[path]; ok {
		return ent.evals
	}
	return 0
}

// Paths lists every computed path in lexical order.
func (g *Engine) Paths() []string {
	out := make([]string, 0, len(g.entries))
	for p := range g.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (g *Engine) get(p state.Path, root state.Object, active []string) (any, error) {
	key := p.String()
	ent, ok := g.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, key)
	}
	if slices.Contains(active, key) {
		return nil, fmt.Errorf("%w: %v -> %s", ErrCycle, active, key)
	}
	active = append(slices.Clip(active), key)

	// Selectors run without the lock; they may read other computed values.
	v := &view{g: g, root: root, level: ent.e.Parent, active: active}
	node := ent.e.Computed()
	deps := make([]any, len(node.Deps()))
	for i, sel := range node.Deps() {
		val, err := v.selectSafe(sel)
		if err != nil {
			return nil, fmt.Errorf("computed %s dep %d: %w", key, i, err)
		}
		deps[i] = val
	}

	g.mu.Lock()
	if ent.valid && state.ShallowEqual(ent.deps, deps) {
		res := ent.result
		g.mu.Unlock()
		return res, nil
	}
	g.mu.Unlock()

	res, err := compute(node, deps)
	if err != nil {
		return nil, fmt.Errorf("computed %s: %w", key, err)
	}

	g.mu.Lock()
	ent.valid = true
	ent.deps = deps
	ent.result = res
	ent.evals++
	g.mu.Unlock()
	return res, nil
}

func compute(node *model.ComputedNode, deps []any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return node.Compute(deps), nil
}

// view is the model.View handed to selectors of one computed node.
type view struct {
	g      *Engine
	root   state.Object
	level  state.Path
	active []string
	err    error
}

func (v *view) State() state.Object { return state.ObjectAt(v.root, v.level) }
func (v *view) Root() state.Object  { return v.root }

func (v *view) Computed(path string) any {
	return v.read(v.level.Join(state.ParsePath(path)))
}

func (v *view) ComputedAt(path string) any {
	return v.read(state.ParsePath(path))
}

func (v *view) read(p state.Path) any {
	if v.err != nil {
		return nil
	}
	res, err := v.g.get(p, v.root, v.active)
	if err != nil {
		v.err = err
		return nil
	}
	return res
}

func (v *view) selectSafe(sel model.Selector) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selector panic: %v", r)
		}
	}()
	v.err = nil
	val = sel(v)
	return val, v.err
}
