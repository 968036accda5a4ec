package modeltree_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree"
)

type greeter struct{ prefix string }

func TestFacade(t *testing.T) {
	ctx := context.Background()
	storage := modeltree.NewMemoryStorage(map[string]string{"app:count": "4"})

	m := modeltree.Model{
		"count": 0,
		"log":   []any{},
		"inc": modeltree.Mutator(func(d *modeltree.Draft, _ any) error {
			d.Set("count", modeltree.Int(d.Get("count"))+1)
			return nil
		}),
		"greet": modeltree.Effect(func(ctx context.Context, h modeltree.Helpers, payload any) (any, error) {
			g := modeltree.Inject[*greeter](h, "greeter")
			return g.prefix + payload.(string), nil
		}),
		"tally": modeltree.MutatorOn(func(d *modeltree.Draft, ev modeltree.Event) error {
			d.Append("log", ev.Type)
			return nil
		}, modeltree.Ref("inc"), modeltree.Ref("greet")),
		"double": modeltree.Computed(func(deps []any) any {
			return modeltree.Int(deps[0]) * 2
		}, modeltree.Local("count")),
	}

	store, err := modeltree.New(ctx, m,
		modeltree.WithLogger(slog.New(slog.DiscardHandler)),
		modeltree.WithInjection("greeter", &greeter{prefix: "hi "}),
		modeltree.WithPersistence(storage, modeltree.PersistConfig{Key: "app", Deny: []string{"log"}}),
	)
	require.NoError(t, err)

	_, err = store.MustCommand("inc").Call(ctx, nil)
	require.NoError(t, err)
	res, err := store.MustCommand("greet").Call(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, "hi ann", res)
	require.NoError(t, store.WaitEffects(ctx))

	double, err := store.Computed("double")
	require.NoError(t, err)
	assert.Equal(t, 10, double)
	assert.Equal(t, []any{"@mutator.inc", "@effect.greet(success)"}, store.State()["log"])

	require.NoError(t, store.Close(ctx))
	raw, err := storage.Get(ctx, "app:count")
	require.NoError(t, err)
	assert.Equal(t, "5", string(raw))
}
