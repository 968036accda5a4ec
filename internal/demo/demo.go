// Package demo holds the example models shipped with the CLI and used by
// harness scenarios.
package demo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
)

// Definition is one registered example.
type Definition struct {
	Name        string
	Description string
	// Build returns a fresh model tree. Trees are never shared between stores.
	Build func() model.Model
	// Persist lists the persisted subtrees, if any.
	Persist []persist.Config
	// Injections returns the collaborators the model's effects expect.
	Injections func() map[string]any
}

var registry = []Definition{
	{
		Name:        "counter",
		Description: "a number with inc, dec and reset plus a doubled computed value",
		Build:       Counter,
	},
	{
		Name:        "todos",
		Description: "a todo list with ids, filtering and remaining-count computed values",
		Build:       Todos,
	},
	{
		Name:        "session",
		Description: "login via an effect, with an audit listener on the session mutators",
		Build:       Session,
		Injections:  func() map[string]any { return map[string]any{"users": NewDirectory(nil)} },
	},
	{
		Name:        "profile",
		Description: "user preferences persisted to storage; the token is never written",
		Build:       Profile,
		Persist:     []persist.Config{ProfilePersistence()},
	},
}

// Names returns the registered model names in registration order.
func Names() []string {
	out := make([]string, len(registry))
	for i, d := range registry {
		out[i] = d.Name
	}
	return out
}

// All returns every registered definition.
func All() []Definition {
	return slices.Clone(registry)
}

// UnknownModelError is returned by Lookup for unregistered names.
type UnknownModelError struct {
	Name       string
	Suggestion string
}

func (e *UnknownModelError) Error() string {
	msg := fmt.Sprintf("unknown model %q (known: %s)", e.Name, strings.Join(Names(), ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggestion)
	}
	return msg
}

// Lookup returns the definition registered under name.
func Lookup(name string) (Definition, error) {
	best, bestDist := "", -1
	for _, d := range registry {
		if d.Name == name {
			return d, nil
		}
		if dist := levenshtein.ComputeDistance(name, d.Name); bestDist < 0 || dist < bestDist {
			best, bestDist = d.Name, dist
		}
	}
	if bestDist > 2 {
		best = ""
	}
	return Definition{}, &UnknownModelError{Name: name, Suggestion: best}
}
