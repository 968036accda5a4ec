package model

import (
	"context"

	"github.com/roach88/modeltree/internal/state"
)

// Model is one level of a model tree.
type Model map[string]any

// Node is a tagged behavior node. The interface is sealed: only the
// constructors in this package produce Nodes.
type Node interface {
	Kind() Kind
	sealed()
}

// MutatorFunc edits the declaring level's draft.
type MutatorFunc func(d *state.Draft, payload any) error

// ResultMutatorFunc is a mutator whose return value is surfaced to the
// caller. The reducer ignores the value.
type ResultMutatorFunc func(d *state.Draft, payload any) (any, error)

// MutatorNode is a synchronous state transition bound to its tree path.
type MutatorNode struct {
	fn            ResultMutatorFunc
	returnsResult bool
}

// Mutator tags fn as a mutator. Calling it returns no value.
func Mutator(fn MutatorFunc) *MutatorNode {
	n := &MutatorNode{}
	if fn != nil {
		n.fn = func(d *state.Draft, payload any) (any, error) {
			return nil, fn(d, payload)
		}
	}
	return n
}

// MutatorWithResult tags fn as a mutator whose return value reaches the
// command caller.
func MutatorWithResult(fn ResultMutatorFunc) *MutatorNode {
	return &MutatorNode{fn: fn, returnsResult: true}
}

func (*MutatorNode) Kind() Kind { return KindMutator }
func (*MutatorNode) sealed()    {}

// ReturnsResult reports whether Apply's value is surfaced to callers.
func (m *MutatorNode) ReturnsResult() bool { return m.returnsResult }

// Valid reports whether the node wraps a function.
func (m *MutatorNode) Valid() bool { return m.fn != nil }

// Apply runs the mutator against d.
func (m *MutatorNode) Apply(d *state.Draft, payload any) (any, error) {
	res, err := m.fn(d, payload)
	if !m.returnsResult {
		res = nil
	}
	return res, err
}

// EffectFunc is an asynchronous routine. It may block on external work;
// state changes go through h.
type EffectFunc func(ctx context.Context, h Helpers, payload any) (any, error)

// EffectNode is an effect bound to its tree path.
type EffectNode struct {
	fn EffectFunc
}

// Effect tags fn as an effect.
func Effect(fn EffectFunc) *EffectNode {
	return &EffectNode{fn: fn}
}

func (*EffectNode) Kind() Kind { return KindEffect }
func (*EffectNode) sealed()    {}

func (e *EffectNode) Valid() bool { return e.fn != nil }

// Run invokes the routine.
func (e *EffectNode) Run(ctx context.Context, h Helpers, payload any) (any, error) {
	return e.fn(ctx, h, payload)
}

// ReducerFunc receives only its own subtree slice and returns the next one.
// Returning the slice unchanged leaves the tree identity-equal.
type ReducerFunc func(slice any, a Action) (any, error)

// ReducerNode is a raw reducer spliced in at its path. It sees every
// action and is exempt from the per-path mutator merge.
type ReducerNode struct {
	initial any
	fn      ReducerFunc
}

// Reducer tags fn as a raw reducer whose slice starts at initial.
func Reducer(initial any, fn ReducerFunc) *ReducerNode {
	return &ReducerNode{initial: initial, fn: fn}
}

func (*ReducerNode) Kind() Kind { return KindReducer }
func (*ReducerNode) sealed()    {}

func (r *ReducerNode) Valid() bool { return r.fn != nil }

// Initial is the slice value in the initial state tree.
func (r *ReducerNode) Initial() any { return r.initial }

// Reduce runs the reducer.
func (r *ReducerNode) Reduce(slice any, a Action) (any, error) {
	return r.fn(slice, a)
}
