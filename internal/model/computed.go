package model

import "github.com/roach88/modeltree/internal/state"

// View is what a dependency selector reads from.
type View interface {
	// State is the declaring level's state.
	State() state.Object
	// Root is the whole state tree.
	Root() state.Object
	// Computed reads another computed value by dotted path relative to the
	// declaring level.
	Computed(path string) any
	// ComputedAt reads a computed value by absolute dotted path.
	ComputedAt(path string) any
}

// Selector picks one dependency value. Selectors must be cheap and return
// values straight out of state so identity comparison works.
type Selector func(v View) any

// ComputedFunc derives a value from the current dependency values.
type ComputedFunc func(deps []any) any

// ComputedNode is a memoized derived value.
type ComputedNode struct {
	deps []Selector
	fn   ComputedFunc
}

// Computed tags fn as a computed value over deps, evaluated in order.
func Computed(fn ComputedFunc, deps ...Selector) *ComputedNode {
	return &ComputedNode{deps: deps, fn: fn}
}

func (*ComputedNode) Kind() Kind { return KindComputed }
func (*ComputedNode) sealed()    {}

func (c *ComputedNode) Valid() bool { return c.fn != nil }

// Deps returns the dependency selectors.
func (c *ComputedNode) Deps() []Selector { return c.deps }

// Compute runs the derivation.
func (c *ComputedNode) Compute(deps []any) any { return c.fn(deps) }

// Local selects key from the declaring level's state.
func Local(key string) Selector {
	return func(v View) any { return v.State()[key] }
}

// Root selects a value by absolute dotted path from the whole tree.
func Root(path string) Selector {
	p := state.ParsePath(path)
	return func(v View) any {
		val, _ := state.GetIn(v.Root(), p)
		return val
	}
}

// Dep selects another computed value relative to the declaring level.
func Dep(path string) Selector {
	return func(v View) any { return v.Computed(path) }
}

// RootDep selects a computed value by absolute dotted path.
func RootDep(path string) Selector {
	return func(v View) any { return v.ComputedAt(path) }
}
