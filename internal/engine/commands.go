package engine

import (
	"context"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Commands is one level of the command tree. It mirrors the model's shape
// restricted to mutators and effects.
type Commands struct {
	store *Store
	node  *compiler.CommandTree
}

// Path returns the level's absolute path.
func (c *Commands) Path() state.Path { return c.node.Path }

// Keys returns the child keys at this level in lexical order.
func (c *Commands) Keys() []string {
	return state.SortedKeys(c.node.Children)
}

// Child returns the nested level at key. Callables are not levels; use
// Lookup for them.
func (c *Commands) Child(key string) (*Commands, bool) {
	n, ok := c.node.Children[key]
	if !ok || n.Entry != nil {
		return nil, false
	}
	return &Commands{store: c.store, node: n}, true
}

// Paths returns the absolute paths of every command below this level in
// tree-walk order.
func (c *Commands) Paths() []string {
	var out []string
	var visit func(n *compiler.CommandTree)
	visit = func(n *compiler.CommandTree) {
		if n.Entry != nil {
			out = append(out, n.Path.String())
			return
		}
		for _, k := range state.SortedKeys(n.Children) {
			visit(n.Children[k])
		}
	}
	visit(c.node)
	return out
}

// Lookup resolves a dotted path relative to this level.
// Returns UnknownCommandError when the path does not name a mutator or
// effect.
func (c *Commands) Lookup(path string) (*Command, error) {
	n := c.node
	for _, key := range state.ParsePath(path) {
		next, ok := n.Children[key]
		if !ok {
			n = nil
			break
		}
		n = next
	}
	if n == nil || n.Entry == nil {
		full := c.node.Path.Join(state.ParsePath(path)).String()
		return nil, &UnknownCommandError{Path: full, Suggestion: c.store.suggest(full)}
	}
	return &Command{store: c.store, entry: n.Entry}, nil
}

// suggest returns the closest known command path, or "" when nothing is
// reasonably close.
func (s *Store) suggest(path string) string {
	best, bestDist := "", -1
	for _, p := range s.commands.Paths() {
		d := levenshtein.ComputeDistance(path, p)
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(path)/3) {
		return ""
	}
	return best
}

// Command is a mutator or effect bound to its tree path.
type Command struct {
	store *Store
	entry *compiler.Entry
}

// Path returns the command's absolute path.
func (c *Command) Path() state.Path { return c.entry.Path }

// Kind is model.KindMutator or model.KindEffect.
func (c *Command) Kind() model.Kind { return c.entry.Kind }

// Type is the primary action type: the mutator type, or the effect's
// start type.
func (c *Command) Type() string { return c.entry.Type() }

// Types lists every action type the command emits.
func (c *Command) Types() []string { return slices.Clone(c.entry.Types) }

// Call invokes the command and waits for it. Mutators return their opt-in
// result; effects return their routine's result.
func (c *Command) Call(ctx context.Context, payload any) (any, error) {
	if c.entry.Kind == model.KindMutator {
		return c.store.process(ctx, model.Action{Type: c.entry.Type(), Payload: payload})
	}
	return c.Start(ctx, payload).Wait(ctx)
}

// Start invokes the command without waiting. Mutators complete before
// Start returns; effects dispatch their start action, then run on their
// own goroutine.
func (c *Command) Start(ctx context.Context, payload any) *Task {
	if c.entry.Kind == model.KindMutator {
		res, err := c.store.process(ctx, model.Action{Type: c.entry.Type(), Payload: payload})
		return completedTask(res, err)
	}
	return c.store.startEffect(ctx, c.entry, payload)
}
