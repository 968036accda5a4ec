package compiler

import (
	"context"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

func noopMutator() *model.MutatorNode {
	return model.Mutator(func(*state.Draft, any) error { return nil })
}

func noopEffect() *model.EffectNode {
	return model.Effect(func(context.Context, model.Helpers, any) (any, error) { return nil, nil })
}

func noopListener(targets ...model.Target) *model.ListenerNode {
	return model.MutatorOn(func(*state.Draft, model.Event) error { return nil }, targets...)
}

func noopEffectListener(targets ...model.Target) *model.ListenerNode {
	return model.EffectOn(func(context.Context, model.Helpers, model.Event) (any, error) { return nil, nil }, targets...)
}

func increment(key string) *model.MutatorNode {
	return model.Mutator(func(d *state.Draft, _ any) error {
		d.Set(key, state.Int(d.Get(key))+1)
		return nil
	})
}

func todoModel() model.Model {
	return model.Model{
		"todos": model.Model{
			"items": []any{},
			"add": model.Mutator(func(d *state.Draft, payload any) error {
				d.Append("items", payload)
				return nil
			}),
			"fetch": noopEffect(),
			"total": model.Computed(func(deps []any) any {
				return len(deps[0].([]any))
			}, model.Local("items")),
		},
		"user": model.Model{
			"name":  "ann",
			"prefs": map[string]int{"theme": 1},
		},
		"count": 0,
		"inc":   increment("count"),
	}
}
