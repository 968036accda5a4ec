package demo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// ErrUnknownUser is returned by Directory.Lookup.
var ErrUnknownUser = errors.New("unknown user")

// Directory resolves user ids to names. Safe for concurrent use.
type Directory struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewDirectory returns a directory over users, or a small default set.
func NewDirectory(users map[string]string) *Directory {
	if users == nil {
		users = map[string]string{"1": "ann", "2": "bob"}
	}
	return &Directory{users: maps.Clone(users)}
}

// Lookup returns the name for id.
func (d *Directory) Lookup(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.users[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	return name, nil
}

// Navigate is the raw action type the route reducer follows.
const Navigate = "NAVIGATE"

// Session models a login flow. session.fetch resolves a user id through
// the "users" injection and logs the user in; audit records every session
// change and every failed fetch. route follows raw NAVIGATE actions.
func Session() model.Model {
	return model.Model{
		"route": model.Reducer("/", func(slice any, a model.Action) (any, error) {
			if a.Type != Navigate {
				return slice, nil
			}
			path, ok := a.Payload.(string)
			if !ok || !strings.HasPrefix(path, "/") {
				return nil, fmt.Errorf("route must start with /, got %v", a.Payload)
			}
			return path, nil
		}),
		"session": model.Model{
			"user": nil,
			"login": model.Mutator(func(d *state.Draft, payload any) error {
				d.Set("user", payload)
				return nil
			}),
			"logout": model.Mutator(func(d *state.Draft, _ any) error {
				d.Set("user", nil)
				return nil
			}),
			"fetch": model.Effect(func(ctx context.Context, h model.Helpers, payload any) (any, error) {
				users := model.Inject[*Directory](h, "users")
				if users == nil {
					return nil, errors.New("no users directory injected")
				}
				id := fmt.Sprint(payload)
				name, err := users.Lookup(ctx, id)
				if err != nil {
					return nil, err
				}
				user := state.Object{"id": id, "name": name}
				if _, err := h.Call(ctx, "login", user); err != nil {
					return nil, err
				}
				return user, nil
			}),
			"loggedIn": model.Computed(func(deps []any) any {
				return deps[0] != nil
			}, model.Local("user")),
		},
		"audit": model.Model{
			"entries": []any{},
			"record": model.MutatorOn(func(d *state.Draft, ev model.Event) error {
				entry := strings.TrimPrefix(ev.Type, "@")
				if ev.Error != nil {
					entry += ": " + ev.Error.Error()
				}
				d.Append("entries", entry)
				return nil
			}, model.RootRef("session.login"), model.RootRef("session.logout"), model.Type("@effect.session.fetch(fail)")),
		},
	}
}
