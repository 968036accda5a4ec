package model

import (
	"context"

	"github.com/roach88/modeltree/internal/state"
)

type targetKind int

const (
	targetRelative targetKind = iota
	targetAbsolute
	targetLiteral
)

// Target names what a listener re-fires on.
type Target struct {
	kind  targetKind
	value string
}

// Ref targets a mutator, effect or listener by dotted path relative to the
// level that declares the listener.
func Ref(path string) Target { return Target{kind: targetRelative, value: path} }

// RootRef targets a node by absolute dotted path.
func RootRef(path string) Target { return Target{kind: targetAbsolute, value: path} }

// Type targets a literal action type, such as one dispatched from outside
// the model.
func Type(actionType string) Target { return Target{kind: targetLiteral, value: actionType} }

// IsLiteral reports whether t names a raw action type.
func (t Target) IsLiteral() bool { return t.kind == targetLiteral }

// Value is the raw path or action type.
func (t Target) Value() string { return t.value }

// Resolve returns the absolute node path for Ref and RootRef targets.
func (t Target) Resolve(declaring state.Path) state.Path {
	switch t.kind {
	case targetRelative:
		return declaring.Join(state.ParsePath(t.value))
	case targetAbsolute:
		return state.ParsePath(t.value)
	}
	return nil
}

func (t Target) String() string {
	switch t.kind {
	case targetAbsolute:
		return "/" + t.value
	case targetLiteral:
		return "type:" + t.value
	}
	return t.value
}

// Event is the normalized descriptor a listener receives, whatever kind of
// node triggered it.
type Event struct {
	// Type is the action type that matched.
	Type    string
	Payload any
	// Result is the effect result or opt-in mutator result.
	Result any
	// Error is set when the triggering effect failed.
	Error error
	// Targets are all action types the listener is registered on.
	Targets []string
}

// ListenerMutatorFunc edits the declaring level's draft in response to ev.
type ListenerMutatorFunc func(d *state.Draft, ev Event) error

// ListenerEffectFunc runs asynchronously in response to ev.
type ListenerEffectFunc func(ctx context.Context, h Helpers, ev Event) (any, error)

// ListenerNode re-fires when any of its targets resolves.
type ListenerNode struct {
	targets []Target
	mutate  ListenerMutatorFunc
	effect  ListenerEffectFunc
}

// MutatorOn registers a mutator listener. It runs synchronously inside the
// triggering dispatch's cascade.
func MutatorOn(fn ListenerMutatorFunc, targets ...Target) *ListenerNode {
	return &ListenerNode{targets: targets, mutate: fn}
}

// EffectOn registers an effect listener. It runs asynchronously after the
// triggering dispatch completes.
func EffectOn(fn ListenerEffectFunc, targets ...Target) *ListenerNode {
	return &ListenerNode{targets: targets, effect: fn}
}

func (*ListenerNode) Kind() Kind { return KindListener }
func (*ListenerNode) sealed()    {}

// Valid reports whether the node wraps a function and has targets.
func (l *ListenerNode) Valid() bool {
	return (l.mutate != nil || l.effect != nil) && len(l.targets) > 0
}

// IsEffect reports whether the listener runs asynchronously.
func (l *ListenerNode) IsEffect() bool { return l.effect != nil }

// Targets returns the declared targets.
func (l *ListenerNode) Targets() []Target { return l.targets }

// Mutate runs a mutator listener.
func (l *ListenerNode) Mutate(d *state.Draft, ev Event) error { return l.mutate(d, ev) }

// Run runs an effect listener.
func (l *ListenerNode) Run(ctx context.Context, h Helpers, ev Event) (any, error) {
	return l.effect(ctx, h, ev)
}
