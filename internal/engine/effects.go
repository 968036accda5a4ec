package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Task is the pending result of an effect.
type Task struct {
	done   chan struct{}
	result any
	err    error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func completedTask(res any, err error) *Task {
	t := newTask()
	t.complete(res, err)
	return t
}

func (t *Task) complete(res any, err error) {
	t.result, t.err = res, err
	close(t.done)
}

// Done is closed once the effect finished and its completion action was
// dispatched.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes or ctx is done. Giving up on a task
// does not cancel the effect.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startEffect dispatches the start action synchronously, then runs the
// routine and dispatches success or fail.
func (s *Store) startEffect(ctx context.Context, e *compiler.Entry, payload any) *Task {
	flow, ok := cascadeFrom(ctx)
	if !ok {
		flow = cascade{token: s.tokens.Generate()}
		ctx = withCascade(ctx, flow)
	}
	// Held until the completion cascade has run.
	s.cycles.Retain(flow.token)

	t := newTask()
	if _, err := s.process(ctx, model.Action{Type: e.Types[0], Payload: payload}); err != nil {
		s.logger.Warn("effect start cascade failed", "effect", e.Path.String(), "error", err)
	}

	s.effects.add()
	go func() {
		defer s.effects.done()
		defer s.cycles.Release(flow.token)

		h := &helpers{store: s, entry: e}
		res, err := runSafely(func() (any, error) { return e.Effect().Run(ctx, h, payload) })
		if err != nil {
			err = fmt.Errorf("effect %s: %w", e.Path, err)
			s.logger.Debug("effect failed", "effect", e.Path.String(), "cascade", CascadeToken(ctx), "error", err)
			s.complete(ctx, model.Action{Type: e.Types[2], Payload: payload, Error: err})
		} else {
			s.complete(ctx, model.Action{Type: e.Types[1], Payload: payload, Result: res})
		}
		t.complete(res, err)
	}()
	return t
}

// startListenerEffect runs a deferred effect listener. The listener is
// independent of the caller that dispatched its trigger, so it keeps the
// caller's context values but not its cancellation.
func (s *Store) startListenerEffect(ctx context.Context, d deferredEffect) {
	ctx = withCascade(context.WithoutCancel(ctx), d.flow)

	s.effects.add()
	go func() {
		defer s.effects.done()
		defer s.cycles.Release(d.flow.token)

		h := &helpers{store: s, entry: d.entry}
		res, err := runSafely(func() (any, error) { return d.entry.Listener().Run(ctx, h, d.event) })
		if err != nil {
			s.logger.Warn("effect listener failed", "listener", d.entry.Path.String(), "trigger", d.event.Type, "error", err)
			s.complete(ctx, model.Action{Type: d.entry.Types[1], Payload: d.event, Error: err})
			return
		}
		s.complete(ctx, model.Action{Type: d.entry.Types[0], Payload: d.event, Result: res})
	}()
}

func (s *Store) complete(ctx context.Context, a model.Action) {
	if _, err := s.process(ctx, a); err != nil {
		s.logger.Warn("completion cascade failed", "action", a.Type, "error", err)
	}
}

func runSafely(fn func() (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// helpers implements model.Helpers for one effect or effect listener.
type helpers struct {
	store *Store
	entry *compiler.Entry
}

func (h *helpers) Call(ctx context.Context, path string, payload any) (any, error) {
	return h.callAt(ctx, h.entry.Parent.Join(state.ParsePath(path)), payload)
}

func (h *helpers) CallRoot(ctx context.Context, path string, payload any) (any, error) {
	return h.callAt(ctx, state.ParsePath(path), payload)
}

func (h *helpers) callAt(ctx context.Context, p state.Path, payload any) (any, error) {
	cmd, err := h.store.commands.Lookup(p.String())
	if err != nil {
		return nil, err
	}
	return cmd.Call(ctx, payload)
}

func (h *helpers) Dispatch(ctx context.Context, a model.Action) (any, error) {
	return h.store.Dispatch(ctx, a)
}

func (h *helpers) State() state.Object {
	return state.ObjectAt(h.store.State(), h.entry.Parent)
}

func (h *helpers) RootState() state.Object {
	return h.store.State()
}

func (h *helpers) Computed(path string) (any, error) {
	return h.store.computed.Get(h.entry.Parent.Join(state.ParsePath(path)).String(), h.store.State())
}

func (h *helpers) Injections() map[string]any { return h.store.injections }
func (h *helpers) Path() state.Path           { return h.entry.Path }
func (h *helpers) ParentPath() state.Path     { return h.entry.Parent }

// inflight counts running effects.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{} // closed when n drops to 0
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

// wait returns once the count is observed at zero. Effects started by
// finishing effects extend the wait.
func (f *inflight) wait(ctx context.Context) error {
	for {
		f.mu.Lock()
		if f.n == 0 {
			f.mu.Unlock()
			return nil
		}
		idle := f.idle
		f.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
