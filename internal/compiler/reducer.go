package compiler

import (
	"fmt"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Reducer is the root reducer composed from every mutator, mutator
// listener and raw reducer in the tree.
//
// INVARIANTS:
//   - Every handler matching an action runs in registration order against
//     the SAME pre-dispatch snapshot; no handler sees another's edits.
//   - All resulting patches merge in one state.Apply, so sibling subtrees
//     update independently and untouched subtrees keep their identity.
//   - Any handler error (or panic) aborts the whole pass and the input
//     state is returned unchanged. There is no partial commit.
type Reducer struct {
	handlers map[string][]handler
	raws     []*Entry
}

type handler struct {
	entry *Entry
	apply func(d *state.Draft, a model.Action) (any, error)
}

func newReducer(c *Compiled) *Reducer {
	r := &Reducer{handlers: make(map[string][]handler), raws: c.Reducers}
	for _, e := range c.Mutators {
		mut := e.Mutator()
		r.handlers[e.Type()] = append(r.handlers[e.Type()], handler{
			entry: e,
			apply: func(d *state.Draft, a model.Action) (any, error) {
				return mut.Apply(d, a.Payload)
			},
		})
	}
	for _, e := range c.Listeners {
		l := e.Listener()
		if l.IsEffect() {
			continue
		}
		r.handlers[e.Type()] = append(r.handlers[e.Type()], handler{
			entry: e,
			apply: func(d *state.Draft, a model.Action) (any, error) {
				ev, _ := a.Payload.(model.Event)
				return nil, l.Mutate(d, ev)
			},
		})
	}
	return r
}

// Handles reports whether any mutator handler is keyed on actionType.
// Raw reducers see every action regardless.
func (r *Reducer) Handles(actionType string) bool {
	return len(r.handlers[actionType]) > 0
}

// Reduce applies a to st. It returns the next state and the opt-in
// mutator result, if any.
func (r *Reducer) Reduce(st state.Object, a model.Action) (next state.Object, result any, err error) {
	var patches []state.Patch

	for _, h := range r.handlers[a.Type] {
		d := state.NewDraft(state.ObjectAt(st, h.entry.Parent))
		res, herr := runHandler(h, d, a)
		if herr != nil {
			return st, nil, &ReduceError{Type: a.Type, Path: h.entry.Path, Err: herr}
		}
		if res != nil {
			result = res
		}
		patches = append(patches, state.Prefix(h.entry.Parent, d.Patches())...)
	}

	for _, e := range r.raws {
		cur, _ := state.GetIn(st, e.Path)
		slice, rerr := runRaw(e, cur, a)
		if rerr != nil {
			return st, nil, &ReduceError{Type: a.Type, Path: e.Path, Err: rerr}
		}
		if state.Same(cur, slice) {
			continue
		}
		patches = append(patches, state.Patch{Path: e.Path, Value: slice})
	}

	return state.Apply(st, patches), result, nil
}

func runHandler(h handler, d *state.Draft, a model.Action) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.apply(d, a)
}

func runRaw(e *Entry, cur any, a model.Action) (next any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Raw().Reduce(cur, a)
}
