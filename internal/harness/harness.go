package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/modeltree/internal/demo"
	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/testutil"
)

// EffectTimeout bounds the wait for effects after each step.
var EffectTimeout = 5 * time.Second

// Harness executes one scenario.
type Harness struct {
	store   *engine.Store
	storage *persist.MemoryStorage
	logger  *slog.Logger

	mu    sync.Mutex
	trace []TraceEvent
}

// Run executes a scenario on a fresh store and returns the result.
// opts are applied after the harness defaults, so they may override the
// logger; overriding the clock or cascade generator breaks golden traces.
//
// Execution flow:
// 1. Build the demo model with a seeded memory storage
// 2. Execute setup steps; any failure aborts the run
// 3. Execute flow steps, checking expect clauses
// 4. Close the store so persistence is flushed
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...engine.Option) (*Result, error) {
	def, err := demo.Lookup(scenario.Model)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		storage: persist.NewMemoryStorage(scenario.Storage),
		logger:  slog.New(slog.DiscardHandler),
	}

	base := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithCascadeGenerator(engine.NewSequenceGenerator(scenario.Cascade)),
		engine.WithObserver(h.observe),
	}
	if def.Injections != nil {
		base = append(base, engine.WithInjections(def.Injections()))
	}
	for _, cfg := range def.Persist {
		base = append(base, engine.WithPersistence(h.storage, cfg))
	}

	h.store, err = engine.New(ctx, def.Build(), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build model %s: %w", def.Name, err)
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		if _, err := h.execute(ctx, step); err != nil {
			h.store.Close(ctx)
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Target(), err)
		}
	}

	for i, step := range scenario.Flow {
		got, err := h.execute(ctx, step)
		if msg := checkExpect(step, got, err); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Target(), msg))
		}
	}

	if err := h.store.Close(ctx); err != nil {
		result.AddError(fmt.Sprintf("close: %v", err))
	}

	result.Trace = h.snapshotTrace()
	result.State = h.store.State()

	actx := &AssertionContext{Ctx: ctx, Store: h.store, Storage: h.storage}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) observe(r engine.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, traceEvent(r))
}

func (h *Harness) snapshotTrace() []TraceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := slices.Clone(h.trace)
	slices.SortStableFunc(out, func(a, b TraceEvent) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	if out == nil {
		out = []TraceEvent{}
	}
	return out
}

// execute runs one step and waits for every effect it started.
func (h *Harness) execute(ctx context.Context, step Step) (any, error) {
	var (
		res any
		err error
	)
	if step.Call != "" {
		cmd, lookupErr := h.store.Command(step.Call)
		if lookupErr != nil {
			return nil, lookupErr
		}
		res, err = cmd.Call(ctx, step.Payload)
	} else {
		res, err = h.store.Dispatch(ctx, model.Action{Type: step.Dispatch, Payload: step.Payload})
	}

	wctx, cancel := context.WithTimeout(ctx, EffectTimeout)
	defer cancel()
	if werr := h.store.WaitEffects(wctx); werr != nil {
		err = errors.Join(err, fmt.Errorf("waiting for effects: %w", werr))
	}
	return res, err
}

// checkExpect returns a failure message, or "" when the outcome matches.
func checkExpect(step Step, got any, err error) string {
	exp := step.Expect
	if !exp.wantsError() {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		if exp != nil && exp.Result != nil && !matchValue(plain(got), exp.Result) {
			return fmt.Sprintf("result = %s, expected %s", render(plain(got)), render(exp.Result))
		}
		return ""
	}

	if err == nil {
		return fmt.Sprintf("expected error (code %q, message %q), got result %s", exp.Code, exp.Error, render(plain(got)))
	}
	if exp.Error != "" && !strings.Contains(err.Error(), exp.Error) {
		return fmt.Sprintf("error %q does not contain %q", err.Error(), exp.Error)
	}
	if exp.Code != "" {
		if code := errorCode(err); code != exp.Code {
			return fmt.Sprintf("error code = %q, expected %q", code, exp.Code)
		}
	}
	return ""
}

func errorCode(err error) string {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		return string(rt.Code)
	}
	if engine.IsUnknownCommand(err) {
		return engine.ErrUnknownCommand
	}
	return ""
}
