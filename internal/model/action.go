package model

import (
	"context"

	"github.com/roach88/modeltree/internal/state"
)

// Action is one unit of dispatch.
type Action struct {
	Type    string
	Payload any
	// Result and Error are set on effect lifecycle actions.
	Result any
	Error  error
	Meta   Meta
}

// Meta is stamped by the store on every dispatched action.
type Meta struct {
	// Seq is the store's logical clock value for this action.
	Seq int64
	// Cascade identifies the top-level dispatch that caused this action.
	Cascade string
	// Depth is 0 for top-level dispatches and grows by one per listener hop.
	Depth int
}

// Helpers is handed to effects. Paths passed to Call and Computed are
// relative to the level declaring the effect.
type Helpers interface {
	Call(ctx context.Context, path string, payload any) (any, error)
	CallRoot(ctx context.Context, path string, payload any) (any, error)
	Dispatch(ctx context.Context, a Action) (any, error)
	// State is the declaring level's current state.
	State() state.Object
	RootState() state.Object
	Computed(path string) (any, error)
	Injections() map[string]any
	// Path is the effect's own path; ParentPath the declaring level.
	Path() state.Path
	ParentPath() state.Path
}

// Inject returns the named injection as T, or the zero value.
func Inject[T any](h Helpers, name string) T {
	return state.As[T](h.Injections()[name])
}
