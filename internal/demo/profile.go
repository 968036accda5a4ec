package demo

import (
	"fmt"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
)

// ProfileSchema constrains hydrated profile data.
const ProfileSchema = `
name?:  string
theme?: "light" | "dark"
`

// ProfilePersistence persists everything but the token.
func ProfilePersistence() persist.Config {
	return persist.Config{
		Key:    "profile",
		Deny:   []string{"token"},
		Merge:  persist.MergeShallow,
		Schema: ProfileSchema,
	}
}

// Profile holds user preferences.
func Profile() model.Model {
	return model.Model{
		"name":  "",
		"theme": "light",
		"token": "",
		"setName": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("name", fmt.Sprint(payload))
			return nil
		}),
		"setTheme": model.Mutator(func(d *state.Draft, payload any) error {
			if payload != "light" && payload != "dark" {
				return fmt.Errorf("unknown theme %v", payload)
			}
			d.Set("theme", payload)
			return nil
		}),
		"setToken": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("token", fmt.Sprint(payload))
			return nil
		}),
		"greeting": model.Computed(func(deps []any) any {
			if deps[0] == "" {
				return "hello"
			}
			return fmt.Sprintf("hello, %v", deps[0])
		}, model.Local("name")),
	}
}
