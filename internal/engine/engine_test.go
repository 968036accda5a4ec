package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
	"github.com/roach88/modeltree/internal/testutil"
)

func TestScenarioA_Counter(t *testing.T) {
	s := newStore(t, model.Model{
		"count": 0,
		"inc":   inc("count"),
	})
	assert.Equal(t, state.Object{"count": 0}, s.State())

	res := call(t, s, "inc", nil)
	assert.Nil(t, res)
	assert.Equal(t, state.Object{"count": 1}, s.State())
	assert.Equal(t, int64(1), s.Version())
}

func TestScenarioB_ComputedTotal(t *testing.T) {
	calls := 0
	s := newStore(t, model.Model{
		"items": []any{},
		"add":   push("items"),
		"total": model.Computed(func(deps []any) any {
			calls++
			return len(deps[0].([]any))
		}, model.Local("items")),
	})

	call(t, s, "add", "a")
	v, err := s.Computed("total")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	call(t, s, "add", "b")
	v, err = s.Computed("total")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = s.Computed("total")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls, "once per distinct items reference")
	assert.Equal(t, 2, s.ComputedEvaluations("total"))
}

func TestScenarioC_ListenerLogsLogin(t *testing.T) {
	var seenUser any
	s := newStore(t, model.Model{
		"session": model.Model{
			"user": nil,
			"login": model.Mutator(func(d *state.Draft, payload any) error {
				d.Set("user", payload)
				return nil
			}),
		},
		"audit": model.Model{
			"entries": []any{},
			"log": model.MutatorOn(func(d *state.Draft, ev model.Event) error {
				d.Append("entries", ev.Type+":"+ev.Payload.(string))
				return nil
			}, model.RootRef("session.login")),
			"peek": model.MutatorOn(func(d *state.Draft, ev model.Event) error {
				return nil
			}, model.RootRef("session.login")),
		},
	}, WithObserver(func(r Record) {
		if r.Type == "@listener.audit.log" {
			seenUser = "observed"
		}
	}))

	call(t, s, "session.login", "ann")

	st := s.State()
	assert.Equal(t, "ann", state.ObjectAt(st, state.Path{"session"})["user"])
	assert.Equal(t, []any{"@mutator.session.login:ann"}, state.ObjectAt(st, state.Path{"audit"})["entries"])
	assert.Equal(t, "observed", seenUser)
}

func TestListenerSeesTriggerChange(t *testing.T) {
	s := newStore(t, model.Model{
		"user": nil,
		"copy": nil,
		"login": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("user", payload)
			return nil
		}),
		"mirror": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Set("copy", d.Get("user"))
			return nil
		}, model.Ref("login")),
	})

	call(t, s, "login", "ann")
	assert.Equal(t, "ann", s.State()["copy"])
	assert.Equal(t, int64(2), s.Version(), "listener is a second reducer pass")
}

func TestListenerOrder_FirstCascadeCompletesBeforeSecond(t *testing.T) {
	rec := &recorder{}
	s := newStore(t, model.Model{
		"log": []any{},
		"go":  model.Mutator(func(*state.Draft, any) error { return nil }),
		"l1": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Append("log", "l1")
			return nil
		}, model.Ref("go")),
		"l1child": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Append("log", "l1child")
			return nil
		}, model.Ref("l1")),
		"l2": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Append("log", "l2")
			return nil
		}, model.Ref("go")),
	}, WithObserver(rec.observe))

	call(t, s, "go", nil)

	assert.Equal(t, []any{"l1", "l1child", "l2"}, s.State()["log"])
	assert.Equal(t, []string{"@mutator.go", "@listener.l1", "@listener.l1child", "@listener.l2"}, rec.types())

	depths := make([]int, len(rec.recs))
	for i, r := range rec.recs {
		depths[i] = r.Depth
	}
	assert.Equal(t, []int{0, 1, 2, 1}, depths)
}

func TestStructuralSharingAcrossDispatch(t *testing.T) {
	s := newStore(t, model.Model{
		"todos": model.Model{"items": []any{}, "add": push("items")},
		"user":  model.Model{"name": "ann"},
	})
	before := s.State()

	call(t, s, "todos.add", "milk")
	after := s.State()

	assert.True(t, state.Same(before["user"], after["user"]))
	assert.False(t, state.Same(before["todos"], after["todos"]))
	assert.Equal(t, []any{}, state.ObjectAt(before, state.Path{"todos"})["items"])
}

func TestSequentialDispatchEqualsComposedReduce(t *testing.T) {
	m := func() model.Model {
		return model.Model{"n": 0, "inc": inc("n"), "items": []any{}, "add": push("items")}
	}
	s := newStore(t, m())
	call(t, s, "inc", nil)
	call(t, s, "add", "x")

	c, err := compiler.Compile(m())
	require.NoError(t, err)
	s1, _, err := c.Reducer.Reduce(c.InitialState, model.Action{Type: "@mutator.inc"})
	require.NoError(t, err)
	s2, _, err := c.Reducer.Reduce(s1, model.Action{Type: "@mutator.add", Payload: "x"})
	require.NoError(t, err)

	assert.Equal(t, s2, s.State())
}

func TestHandlerErrorLeavesStateUntouched(t *testing.T) {
	boom := errors.New("invalid amount")
	updates := 0
	s := newStore(t, model.Model{
		"balance": 10,
		"withdraw": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("balance", state.Int(d.Get("balance"))-state.Int(payload))
			if state.Int(d.Get("balance")) < 0 {
				return boom
			}
			return nil
		}),
	})
	s.Subscribe(func(state.Object) { updates++ })
	before := s.State()

	_, err := s.MustCommand("withdraw").Call(context.Background(), 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsHandlerError(err))
	assert.True(t, state.Same(before, s.State()))
	assert.Equal(t, 0, updates)
}

func TestListenerFailureKeepsEarlierChanges(t *testing.T) {
	boom := errors.New("listener broke")
	s := newStore(t, model.Model{
		"n":   0,
		"log": []any{},
		"inc": inc("n"),
		"a": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Append("log", "a")
			return nil
		}, model.Ref("inc")),
		"b": model.MutatorOn(func(*state.Draft, model.Event) error { return boom }, model.Ref("inc")),
		"c": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Append("log", "c")
			return nil
		}, model.Ref("inc")),
	})

	_, err := s.MustCommand("inc").Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsListenerError(err))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, s.State()["n"])
	assert.Equal(t, []any{"a", "c"}, s.State()["log"], "cascade continues past a failed listener")
}

func TestMutatorWithResult(t *testing.T) {
	s := newStore(t, model.Model{
		"items": []any{},
		"create": model.MutatorWithResult(func(d *state.Draft, payload any) (any, error) {
			d.Append("items", payload)
			return len(d.Get("items").([]any)) - 1, nil
		}),
	})
	assert.Equal(t, 0, call(t, s, "create", "a"))
	assert.Equal(t, 1, call(t, s, "create", "b"))
}

func TestRawDispatchAndLiteralTargets(t *testing.T) {
	s := newStore(t, model.Model{
		"history": model.Reducer([]any{}, func(slice any, a model.Action) (any, error) {
			if a.Type != "ROUTE" {
				return slice, nil
			}
			return append(append([]any{}, slice.([]any)...), a.Payload), nil
		}),
		"visits": 0,
		"count": model.MutatorOn(func(d *state.Draft, ev model.Event) error {
			d.Set("visits", state.Int(d.Get("visits"))+1)
			return nil
		}, model.Type("ROUTE")),
	})

	_, err := s.Dispatch(context.Background(), model.Action{Type: "ROUTE", Payload: "/home"})
	require.NoError(t, err)
	_, err = s.Dispatch(context.Background(), model.Action{Type: "ROUTE", Payload: "/about"})
	require.NoError(t, err)

	assert.Equal(t, []any{"/home", "/about"}, s.State()["history"])
	assert.Equal(t, 2, s.State()["visits"])

	_, err = s.Dispatch(context.Background(), model.Action{})
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	s := newStore(t, model.Model{
		"todos": model.Model{"add": push("items"), "items": []any{}},
		"count": 0,
	})

	_, err := s.Command("todos.ad")
	require.Error(t, err)
	assert.True(t, IsUnknownCommand(err))

	var uc *UnknownCommandError
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "todos.add", uc.Suggestion)
	assert.Contains(t, err.Error(), "E210")

	_, err = s.Command("count")
	assert.True(t, IsUnknownCommand(err), "state is not callable")

	_, err = s.Command("zzzzzzzzzz")
	require.ErrorAs(t, err, &uc)
	assert.Empty(t, uc.Suggestion)

	assert.Panics(t, func() { s.MustCommand("nope") })
}

func TestCommandTree(t *testing.T) {
	s := newStore(t, model.Model{
		"inc":   inc("n"),
		"n":     0,
		"todos": model.Model{"add": push("items"), "items": []any{}, "sub": model.Model{"clear": inc("x")}},
		"user":  model.Model{"name": "ann"},
	})

	root := s.Commands()
	assert.Equal(t, []string{"inc", "todos"}, root.Keys())
	assert.Equal(t, []string{"inc", "todos.add", "todos.sub.clear"}, root.Paths())

	todos, ok := root.Child("todos")
	require.True(t, ok)
	cmd, err := todos.Lookup("add")
	require.NoError(t, err)
	assert.Equal(t, state.Path{"todos", "add"}, cmd.Path())
	assert.Equal(t, model.KindMutator, cmd.Kind())
	assert.Equal(t, "@mutator.todos.add", cmd.Type())

	_, ok = root.Child("inc")
	assert.False(t, ok, "callables are not levels")
}

func TestSubscribe_OncePerTopLevelDispatch(t *testing.T) {
	s := newStore(t, model.Model{
		"n":   0,
		"m":   0,
		"inc": inc("n"),
		"follow": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Set("m", state.Int(d.Get("m"))+1)
			return nil
		}, model.Ref("inc")),
		"noop": model.Mutator(func(*state.Draft, any) error { return nil }),
	})

	var got []state.Object
	unsubscribe := s.Subscribe(func(st state.Object) { got = append(got, st) })

	call(t, s, "inc", nil)
	require.Len(t, got, 1, "cascade of two reducer passes notifies once")
	assert.Equal(t, state.Object{"n": 1, "m": 1}, got[0])

	call(t, s, "noop", nil)
	assert.Len(t, got, 1, "no change, no notification")

	unsubscribe()
	unsubscribe()
	call(t, s, "inc", nil)
	assert.Len(t, got, 1)
}

func TestSubscribe_CallbackMayDispatch(t *testing.T) {
	s := newStore(t, model.Model{
		"a":    0,
		"b":    0,
		"incA": inc("a"),
		"incB": inc("b"),
	})

	var seen []state.Object
	s.Subscribe(func(st state.Object) {
		seen = append(seen, st)
		if state.Int(st["b"]) == 0 {
			_, err := s.MustCommand("incB").Call(context.Background(), nil)
			assert.NoError(t, err)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.MustCommand("incA").Call(context.Background(), nil)
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch from a subscriber blocked")
	}

	require.Len(t, seen, 2, "nested change is delivered after the outer callback returns")
	assert.Equal(t, state.Object{"a": 1, "b": 0}, seen[0])
	assert.Equal(t, state.Object{"a": 1, "b": 1}, seen[1])
}

func TestSubscribe_PanicDoesNotBlockLaterDeliveries(t *testing.T) {
	s := newStore(t, model.Model{"n": 0, "inc": inc("n")})

	var calls int
	s.Subscribe(func(state.Object) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	})

	assert.Panics(t, func() { _, _ = s.MustCommand("inc").Call(context.Background(), nil) })
	call(t, s, "inc", nil)
	assert.Equal(t, 2, calls)
}

func TestListenersIntrospection(t *testing.T) {
	s := newStore(t, model.Model{
		"login": inc("n"),
		"n":     0,
		"audit": model.MutatorOn(func(*state.Draft, model.Event) error { return nil }, model.Ref("login"), model.Type("EXT")),
		"sync": model.EffectOn(func(context.Context, model.Helpers, model.Event) (any, error) {
			return nil, nil
		}, model.RootRef("login")),
	})

	ls := s.Listeners()
	require.Len(t, ls, 2)
	assert.Equal(t, ListenerInfo{
		Path:     "audit",
		Kind:     "mutator",
		Declared: []string{"login", "type:EXT"},
		Targets:  []string{"@mutator.login", "EXT"},
		Emits:    []string{"@listener.audit"},
	}, ls[0])
	assert.Equal(t, "effect", ls[1].Kind)
	assert.Equal(t, []string{"/login"}, ls[1].Declared)

	assert.Contains(t, s.ActionTypes(), "@listener.sync(fail)")
}

func TestConcurrentDispatchIsAtomic(t *testing.T) {
	s := newStore(t, model.Model{"n": 0, "inc": inc("n")}, WithCascadeGenerator(UUIDv7Generator{}))

	const workers, each = 20, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				_, err := s.MustCommand("inc").Call(context.Background(), nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*each, s.State()["n"])
	assert.Equal(t, int64(workers*each), s.Version())
}

func TestMetaIsStamped(t *testing.T) {
	rec := &recorder{}
	s := newStore(t, model.Model{
		"inc": inc("n"),
		"n":   0,
		"l":   model.MutatorOn(func(*state.Draft, model.Event) error { return nil }, model.Ref("inc")),
	}, WithObserver(rec.observe), WithClock(NewClockAt(100)))

	call(t, s, "inc", nil)
	call(t, s, "inc", nil)

	require.Len(t, rec.recs, 4)
	assert.Equal(t, []int64{101, 102, 103, 104}, []int64{rec.recs[0].Seq, rec.recs[1].Seq, rec.recs[2].Seq, rec.recs[3].Seq})
	assert.Equal(t, "c-1", rec.recs[0].Cascade)
	assert.Equal(t, "c-1", rec.recs[1].Cascade)
	assert.Equal(t, "c-2", rec.recs[2].Cascade)
	assert.True(t, rec.recs[0].Changed)
	assert.False(t, rec.recs[1].Changed)
}

func TestMaxCascadeSteps(t *testing.T) {
	var buf logBuffer
	s := newStore(t, model.Model{
		"n":    0,
		"kick": inc("n"),
		// Each firing re-triggers itself; unbounded without a quota.
		"loop": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Set("n", state.Int(d.Get("n"))+1)
			return nil
		}, model.Ref("kick"), model.Ref("loop")),
	}, WithMaxCascadeSteps(10), WithLogger(buf.logger()))

	_, err := s.MustCommand("kick").Call(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsStepsExceeded(err))
	assert.Equal(t, 10, s.State()["n"], "steps applied before the quota stay applied")

	logs := buf.String()
	assert.Contains(t, logs, "listener cycle")
	assert.Contains(t, logs, "listener cycle at runtime")
	assert.Equal(t, 1, strings.Count(logs, "listener cycle at runtime"), "runtime cycle is warned once per cascade")
}

func TestScenarioD_Hydration(t *testing.T) {
	storage := persist.NewMemoryStorage(map[string]string{"foo": `"bar"`})
	s := newStore(t, model.Model{"foo": "default", "other": 1},
		WithPersistence(storage, persist.Config{Allow: []string{"foo"}}))

	assert.Equal(t, "bar", s.State()["foo"])
	assert.NoError(t, s.HydrateErr())
}

func TestHydrationFailureFallsBackToDefaults(t *testing.T) {
	storage := persist.NewMemoryStorage(map[string]string{"foo": `{broken`})
	s := newStore(t, model.Model{"foo": "default"},
		WithPersistence(storage, persist.Config{}))

	assert.Equal(t, "default", s.State()["foo"])
	assert.Error(t, s.HydrateErr())
}

func TestPersistence_InvalidSchemaIsConfigError(t *testing.T) {
	_, err := New(context.Background(), model.Model{"foo": 1},
		WithPersistence(persist.NewMemoryStorage(nil), persist.Config{Schema: "foo: "}))
	require.Error(t, err)
}

func TestPersistence_WritesOnChangeAndClose(t *testing.T) {
	storage := persist.NewMemoryStorage(nil)
	s, err := New(context.Background(), model.Model{
		"n":      0,
		"secret": "x",
		"inc":    inc("n"),
	}, WithPersistence(storage, persist.Config{Key: "app", Deny: []string{"secret"}}),
		WithCascadeGenerator(NewSequenceGenerator("c")))
	require.NoError(t, err)

	call(t, s, "inc", nil)
	call(t, s, "inc", nil)
	require.NoError(t, s.Close(context.Background()))

	raw, err := storage.Get(context.Background(), "app:n")
	require.NoError(t, err)
	assert.Equal(t, "2", string(raw))
	_, err = storage.Get(context.Background(), "app:secret")
	assert.ErrorIs(t, err, persist.ErrNotFound)

	// Dispatch after close still applies but is no longer persisted.
	call(t, s, "inc", nil)
	assert.Equal(t, 3, s.State()["n"])
	require.NoError(t, s.Flush(context.Background()))
	raw, _ = storage.Get(context.Background(), "app:n")
	assert.Equal(t, "2", string(raw))
}

func TestClose_PersistsChangesFromDrainingEffects(t *testing.T) {
	storage := persist.NewMemoryStorage(nil)
	release := make(chan struct{})
	s := newStore(t, model.Model{
		"n": 0,
		"set": model.Mutator(func(d *state.Draft, payload any) error {
			d.Set("n", payload)
			return nil
		}),
		"slow": model.Effect(func(ctx context.Context, h model.Helpers, _ any) (any, error) {
			<-release
			return h.Call(ctx, "set", 42)
		}),
	}, WithPersistence(storage, persist.Config{Key: "app"}))

	s.MustCommand("slow").Start(context.Background(), nil)

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()
	require.Eventually(t, s.closed.Load, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-closed)

	assert.Equal(t, 42, s.State()["n"])
	raw, err := storage.Get(context.Background(), "app:n")
	require.NoError(t, err)
	assert.Equal(t, "42", string(raw))
}

func TestCycleHistoryReleasedWhenEffectCascadeEnds(t *testing.T) {
	s := newStore(t, model.Model{
		"n": 0,
		"job": model.Effect(func(context.Context, model.Helpers, any) (any, error) {
			return nil, nil
		}),
		// Re-triggers itself once the job completes; the quota stops it.
		"loop": model.MutatorOn(func(d *state.Draft, _ model.Event) error {
			d.Set("n", state.Int(d.Get("n"))+1)
			return nil
		}, model.Ref("job"), model.Ref("loop")),
	}, WithMaxCascadeSteps(5))

	s.MustCommand("job").Start(context.Background(), nil)
	waitEffects(t, s)

	assert.Positive(t, state.Int(s.State()["n"]))
	assert.Zero(t, s.cycles.HistorySize())
}

func TestConfigErrorsPreventConstruction(t *testing.T) {
	_, err := New(context.Background(), model.Model{"bad": func() {}})
	require.Error(t, err)
	assert.True(t, compiler.IsConfigError(err))
}

func TestDeterministicCollaborators(t *testing.T) {
	run := func() []Record {
		rec := &recorder{}
		s := newStore(t, model.Model{"n": 0, "inc": inc("n")},
			WithClock(testutil.NewDeterministicClock()),
			WithCascadeGenerator(testutil.NewFixedCascadeGenerator("fixed")),
			WithObserver(rec.observe))
		call(t, s, "inc", nil)
		call(t, s, "inc", nil)
		return rec.recs
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "fixed", first[1].Cascade)
	assert.Equal(t, int64(2), first[1].Seq)
}
