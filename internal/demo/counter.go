package demo

import (
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Counter is a single number. inc and dec take an optional step.
func Counter() model.Model {
	step := func(payload any) int {
		if payload == nil {
			return 1
		}
		return state.Int(payload)
	}
	return model.Model{
		"count": 0,
		"inc": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("count", state.Int(d.Get("count"))+step(payload))
			return nil
		}),
		"dec": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("count", state.Int(d.Get("count"))-step(payload))
			return nil
		}),
		"reset": model.Mutator(func(d *state.Draft, _ any) error {
			d.Set("count", 0)
			return nil
		}),
		"double": model.Computed(func(deps []any) any {
			return state.Int(deps[0]) * 2
		}, model.Local("count")),
	}
}
