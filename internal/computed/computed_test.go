package computed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

func compile(t *testing.T, m model.Model) (*compiler.Compiled, *Engine) {
	t.Helper()
	c, err := compiler.Compile(m)
	require.NoError(t, err)
	return c, New(c)
}

func itemsModel(calls *int) model.Model {
	return model.Model{
		"cart": model.Model{
			"items": []any{},
			"total": model.Computed(func(deps []any) any {
				*calls++
				return len(deps[0].([]any))
			}, model.Local("items")),
		},
		"user": model.Model{"name": "ann"},
	}
}

func TestEngine_MemoizesOnIdentity(t *testing.T) {
	calls := 0
	c, eng := compile(t, itemsModel(&calls))
	s0 := c.InitialState

	v, err := eng.Get("cart.total", s0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	v, err = eng.Get("cart.total", s0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 1, calls, "second read without a change must hit the cache")

	// Unrelated change keeps the items reference.
	s1 := state.Apply(s0, []state.Patch{{Path: state.Path{"user", "name"}, Value: "bob"}})
	_, err = eng.Get("cart.total", s1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Replacing items with a fresh array recomputes.
	s2 := state.Apply(s1, []state.Patch{{Path: state.Path{"cart", "items"}, Value: []any{"a"}}})
	v, err = eng.Get("cart.total", s2)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, eng.Evaluations("cart.total"))
}

func TestEngine_UnreadNeverRecomputes(t *testing.T) {
	calls := 0
	c, eng := compile(t, itemsModel(&calls))
	st := c.InitialState
	for i := 0; i < 5; i++ {
		st = state.Apply(st, []state.Patch{{Path: state.Path{"cart", "items"}, Value: []any{i}}})
	}
	assert.Equal(t, 0, calls)

	_, err := eng.Get("cart.total", st)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestEngine_ChainedComputedShortCircuits(t *testing.T) {
	var inner, outer int
	m := model.Model{
		"items": []any{1, 2},
		"flag":  false,
		"count": model.Computed(func(deps []any) any {
			inner++
			return len(deps[0].([]any))
		}, model.Local("items")),
		"label": model.Computed(func(deps []any) any {
			outer++
			return deps[0].(int) * 10
		}, model.Dep("count")),
	}
	c, eng := compile(t, m)

	v, err := eng.Get("label", c.InitialState)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	s1 := state.Apply(c.InitialState, []state.Patch{{Path: state.Path{"flag"}, Value: true}})
	_, err = eng.Get("label", s1)
	require.NoError(t, err)
	assert.Equal(t, 1, inner)
	assert.Equal(t, 1, outer)

	// New items of the same length recompute count but label sees an equal
	// int and short-circuits.
	s2 := state.Apply(s1, []state.Patch{{Path: state.Path{"items"}, Value: []any{3, 4}}})
	_, err = eng.Get("label", s2)
	require.NoError(t, err)
	assert.Equal(t, 2, inner)
	assert.Equal(t, 1, outer)
}

func TestEngine_RootSelectors(t *testing.T) {
	m := model.Model{
		"settings": model.Model{"currency": "EUR"},
		"cart": model.Model{
			"sum": 12,
			"display": model.Computed(func(deps []any) any {
				return deps[0].(string) + " " + deps[1].(string)
			}, model.Root("settings.currency"), model.RootDep("cart.formatted")),
			"formatted": model.Computed(func(deps []any) any {
				return "12.00"
			}, model.Local("sum")),
		},
	}
	c, eng := compile(t, m)

	v, err := eng.Get("cart.display", c.InitialState)
	require.NoError(t, err)
	assert.Equal(t, "EUR 12.00", v)
}

func TestEngine_Errors(t *testing.T) {
	m := model.Model{
		"a": model.Computed(func(deps []any) any { return deps[0] }, model.Dep("b")),
		"b": model.Computed(func(deps []any) any { return deps[0] }, model.Dep("a")),
		"c": model.Computed(func(deps []any) any { return deps[0] }, model.Dep("missing")),
		"d": model.Computed(func(deps []any) any { panic("bad") }, model.Local("x")),
		"x": 1,
	}
	c, eng := compile(t, m)

	_, err := eng.Get("a", c.InitialState)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = eng.Get("c", c.InitialState)
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = eng.Get("nope", c.InitialState)
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = eng.Get("d", c.InitialState)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad")

	assert.Equal(t, []string{"a", "b", "c", "d"}, eng.Paths())
}
