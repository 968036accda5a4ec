package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Entry is one behavior node found by the walk.
type Entry struct {
	// Path is the node's own address; Parent the level that declares it.
	Path   state.Path
	Parent state.Path
	Kind   model.Kind
	Node   model.Node

	// Types lists the action types the node emits, primary first:
	// mutator [type], effect [start, success, fail], mutator listener
	// [type], effect listener [success, fail].
	Types []string

	// Listener only: resolved target types and registration index.
	Targets []string
	Index   int
}

// Type is the entry's primary action type.
func (e *Entry) Type() string {
	if len(e.Types) == 0 {
		return ""
	}
	return e.Types[0]
}

func (e *Entry) Mutator() *model.MutatorNode   { return e.Node.(*model.MutatorNode) }
func (e *Entry) Effect() *model.EffectNode     { return e.Node.(*model.EffectNode) }
func (e *Entry) Computed() *model.ComputedNode { return e.Node.(*model.ComputedNode) }
func (e *Entry) Listener() *model.ListenerNode { return e.Node.(*model.ListenerNode) }
func (e *Entry) Raw() *model.ReducerNode       { return e.Node.(*model.ReducerNode) }

// CommandTree mirrors the model's shape restricted to mutators and effects.
// Levels without callables below them are omitted.
type CommandTree struct {
	Path     state.Path
	Entry    *Entry
	Children map[string]*CommandTree
}

// Compiled is the result of compiling one model tree. It is immutable and
// may back any number of stores.
type Compiled struct {
	InitialState state.Object
	Commands     *CommandTree
	Reducer      *Reducer
	Warnings     []CycleWarning

	// Entries in registration (tree-walk) order, per kind.
	Mutators  []*Entry
	Effects   []*Entry
	Computeds []*Entry
	Listeners []*Entry
	Reducers  []*Entry

	nodes    map[string]*Entry
	types    map[string]*Entry
	registry map[string][]int
}

// Node returns the behavior node at the dotted path.
func (c *Compiled) Node(path string) (*Entry, bool) {
	e, ok := c.nodes[path]
	return e, ok
}

// Owner returns the node that emits actionType.
func (c *Compiled) Owner(actionType string) (*Entry, bool) {
	e, ok := c.types[actionType]
	return e, ok
}

// ListenersFor returns the listeners registered on actionType in
// registration order.
func (c *Compiled) ListenersFor(actionType string) []*Entry {
	idx := c.registry[actionType]
	if len(idx) == 0 {
		return nil
	}
	out := make([]*Entry, len(idx))
	for i, n := range idx {
		out[i] = c.Listeners[n]
	}
	return out
}

// ActionTypes returns every synthesized action type in lexical order.
func (c *Compiled) ActionTypes() []string {
	return state.SortedKeys(c.types)
}

// RegisteredTypes returns every action type at least one listener targets.
func (c *Compiled) RegisteredTypes() []string {
	return state.SortedKeys(c.registry)
}

// Compile walks m and builds everything a store needs.
// Returns ConfigErrors listing every problem found (does not fail-fast).
func Compile(m model.Model) (*Compiled, error) {
	w := &walker{
		c: &Compiled{
			nodes:    make(map[string]*Entry),
			types:    make(map[string]*Entry),
			registry: make(map[string][]int),
		},
	}
	root, cmds := w.walk(nil, m)
	w.c.InitialState = root
	if cmds == nil {
		cmds = &CommandTree{Children: map[string]*CommandTree{}}
	}
	w.c.Commands = cmds

	w.resolveListeners()
	if len(w.errs) > 0 {
		return nil, w.errs
	}

	w.c.Reducer = newReducer(w.c)
	w.c.Warnings = AnalyzeCycles(w.c.Listeners)
	return w.c, nil
}

type walker struct {
	c    *Compiled
	errs ConfigErrors
}

func (w *walker) fail(code string, p state.Path, format string, args ...any) {
	w.errs = append(w.errs, ConfigError{Code: code, Path: p.String(), Message: fmt.Sprintf(format, args...)})
}

// walk returns the level's initial state and its command subtree (nil when
// the level has no callables).
func (w *walker) walk(level state.Path, m map[string]any) (state.Object, *CommandTree) {
	obj := make(state.Object, len(m))
	var cmds *CommandTree
	addCmd := func(key string, sub *CommandTree) {
		if cmds == nil {
			cmds = &CommandTree{Path: level, Children: make(map[string]*CommandTree)}
		}
		cmds.Children[key] = sub
	}

	for _, key := range state.SortedKeys(m) {
		p := level.Child(key)
		if key == "" || strings.Contains(key, ".") {
			w.fail(ErrInvalidKey, p, "key %q must be non-empty and must not contain '.'", key)
			continue
		}

		v := m[key]
		switch model.Classify(v) {
		case model.KindState:
			obj[key] = v

		case model.KindModel:
			sub, subCmds := w.walk(p, asMap(v))
			obj[key] = sub
			if subCmds != nil {
				addCmd(key, subCmds)
			}

		case model.KindMutator:
			n := v.(*model.MutatorNode)
			if !n.Valid() {
				w.fail(ErrInvalidNode, p, "mutator has no function")
				continue
			}
			e := w.add(p, level, model.KindMutator, n, MutatorType(p))
			w.c.Mutators = append(w.c.Mutators, e)
			addCmd(key, &CommandTree{Path: p, Entry: e})

		case model.KindEffect:
			n := v.(*model.EffectNode)
			if !n.Valid() {
				w.fail(ErrInvalidNode, p, "effect has no function")
				continue
			}
			e := w.add(p, level, model.KindEffect, n,
				EffectType(p, PhaseStart), EffectType(p, PhaseSuccess), EffectType(p, PhaseFail))
			w.c.Effects = append(w.c.Effects, e)
			addCmd(key, &CommandTree{Path: p, Entry: e})

		case model.KindComputed:
			n := v.(*model.ComputedNode)
			if !n.Valid() {
				w.fail(ErrInvalidNode, p, "computed has no function")
				continue
			}
			if len(n.Deps()) == 0 {
				w.fail(ErrComputedNoDeps, p, "computed declares no dependencies")
				continue
			}
			e := w.add(p, level, model.KindComputed, n)
			w.c.Computeds = append(w.c.Computeds, e)

		case model.KindListener:
			n := v.(*model.ListenerNode)
			if !n.Valid() {
				w.fail(ErrInvalidNode, p, "listener needs a function and at least one target")
				continue
			}
			var e *Entry
			if n.IsEffect() {
				e = w.add(p, level, model.KindListener, n,
					ListenerEffectType(p, PhaseSuccess), ListenerEffectType(p, PhaseFail))
			} else {
				e = w.add(p, level, model.KindListener, n, ListenerType(p))
			}
			e.Index = len(w.c.Listeners)
			w.c.Listeners = append(w.c.Listeners, e)

		case model.KindReducer:
			n := v.(*model.ReducerNode)
			if !n.Valid() {
				w.fail(ErrInvalidNode, p, "reducer has no function")
				continue
			}
			obj[key] = n.Initial()
			e := w.add(p, level, model.KindReducer, n)
			w.c.Reducers = append(w.c.Reducers, e)

		default:
			if _, isNode := v.(model.Node); isNode {
				w.fail(ErrInvalidNode, p, "nil %T node", v)
			} else {
				w.fail(ErrUnmarkedFunction, p, "function %s is not wrapped in a node constructor", reflect.TypeOf(v))
			}
		}
	}
	return obj, cmds
}

func (w *walker) add(p, parent state.Path, kind model.Kind, n model.Node, types ...string) *Entry {
	e := &Entry{Path: p, Parent: parent, Kind: kind, Node: n, Types: types, Index: -1}
	w.c.nodes[p.String()] = e
	for _, t := range types {
		if prev, dup := w.c.types[t]; dup {
			w.fail(ErrDuplicateType, p, "action type %q already synthesized by %s", t, prev.Path)
			continue
		}
		w.c.types[t] = e
	}
	return e
}

// resolveListeners turns declared targets into action types and fills the
// registry. Each listener appears at most once per type.
func (w *walker) resolveListeners() {
	for _, l := range w.c.Listeners {
		seen := make(map[string]bool)
		for _, t := range l.Listener().Targets() {
			for _, typ := range w.targetTypes(l, t) {
				if seen[typ] {
					continue
				}
				seen[typ] = true
				l.Targets = append(l.Targets, typ)
				w.c.registry[typ] = append(w.c.registry[typ], l.Index)
			}
		}
	}
}

func (w *walker) targetTypes(l *Entry, t model.Target) []string {
	if t.IsLiteral() {
		if t.Value() == "" {
			w.fail(ErrUnresolvedTarget, l.Path, "empty action type target")
			return nil
		}
		return []string{t.Value()}
	}
	p := t.Resolve(l.Parent)
	target, ok := w.c.nodes[p.String()]
	if !ok {
		w.fail(ErrUnresolvedTarget, l.Path, "target %s does not resolve to a node (resolved %q)", t, p)
		return nil
	}
	switch target.Kind {
	case model.KindMutator:
		return []string{target.Type()}
	case model.KindEffect:
		// An effect resolves when it succeeds or fails.
		return target.Types[1:]
	case model.KindListener:
		return target.Types
	}
	w.fail(ErrUnresolvedTarget, l.Path, "target %s is a %s, not a mutator, effect or listener", t, target.Kind)
	return nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(model.Model); ok {
		return m
	}
	return v.(map[string]any)
}
