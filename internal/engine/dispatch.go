package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/modeltree/internal/compiler"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Dispatch processes a raw action: reduce, then the full listener cascade.
// It returns the opt-in mutator result of the action itself, if any.
//
// Raw actions with types no handler knows still run raw reducers and
// listeners registered on the literal type.
func (s *Store) Dispatch(ctx context.Context, a model.Action) (any, error) {
	if a.Type == "" {
		return nil, errors.New("dispatch: empty action type")
	}
	return s.process(ctx, a)
}

// work is one pending action on the cascade stack.
type work struct {
	action model.Action
	chain  []string
	top    bool
}

// deferredEffect is an effect listener resolved during a critical section
// and started after it.
type deferredEffect struct {
	entry *compiler.Entry
	event model.Event
	flow  cascade
}

// process runs one critical section.
func (s *Store) process(ctx context.Context, a model.Action) (any, error) {
	flow, inherited := cascadeFrom(ctx)
	if !inherited {
		flow = cascade{token: s.tokens.Generate()}
		s.cycles.Retain(flow.token)
		defer s.cycles.Release(flow.token)
	}
	if s.closed.Load() {
		s.logger.Warn("dispatch after close", "action", a.Type, "cascade", flow.token)
	}

	s.mu.Lock()
	start := s.snapshot.Load()
	quota := NewQuotaEnforcer(s.maxSteps)

	var (
		result       any
		deferred     []deferredEffect
		listenerErrs []error
		stopErr      error
	)
	stack := []work{{action: a, chain: flow.chain, top: true}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := quota.Check(flow.token, w.action.Type); err != nil {
			s.logger.Error("max cascade steps exceeded",
				"cascade", flow.token, "action", w.action.Type, "steps", quota.Current())
			stopErr = err
			break
		}

		act := w.action
		act.Meta = model.Meta{Seq: s.clock.Next(), Cascade: flow.token, Depth: len(w.chain)}

		cur := s.snapshot.Load()
		next, res, err := s.compiled.Reducer.Reduce(cur.state, act)
		if err != nil {
			s.observe(act, nil, false, err)
			if w.top {
				s.mu.Unlock()
				s.logger.Debug("handler failed", "action", act.Type, "cascade", flow.token, "error", err)
				return nil, &RuntimeError{
					Code:    ErrCodeHandlerFailed,
					Message: "handler failed, state unchanged",
					Cascade: flow.token,
					Type:    act.Type,
					Err:     err,
				}
			}
			s.logger.Warn("listener failed", "action", act.Type, "cascade", flow.token, "error", err)
			listenerErrs = append(listenerErrs, err)
			continue
		}

		changed := !state.Same(cur.state, next)
		if changed {
			s.snapshot.Store(&snapshot{state: next, version: cur.version + 1})
		}
		if w.top {
			result = res
		}
		s.observe(act, res, changed, nil)
		s.logger.Debug("processed action",
			"action", act.Type, "seq", act.Meta.Seq, "cascade", flow.token,
			"depth", act.Meta.Depth, "changed", changed)

		frames, effects := s.resolve(act, w.chain, flow)
		deferred = append(deferred, effects...)
		for i := len(frames) - 1; i >= 0; i-- {
			stack = append(stack, frames[i])
		}
	}

	end := s.snapshot.Load()
	s.mu.Unlock()

	if end != start {
		s.notify(end)
		if !s.unpersisted.Load() {
			for _, p := range s.persisters {
				p.Enqueue(end.state)
			}
		}
	}
	for _, d := range deferred {
		s.startListenerEffect(ctx, d)
	}

	if stopErr != nil {
		return result, stopErr
	}
	if len(listenerErrs) > 0 {
		return result, &RuntimeError{
			Code:    ErrCodeListenerFailed,
			Message: fmt.Sprintf("%d listener(s) failed; earlier changes remain applied", len(listenerErrs)),
			Cascade: flow.token,
			Type:    a.Type,
			Err:     errors.Join(listenerErrs...),
		}
	}
	return result, nil
}

// resolve finds the listeners for act in registration order. Mutator
// listeners become cascade frames; effect listeners are deferred.
func (s *Store) resolve(act model.Action, chain []string, flow cascade) ([]work, []deferredEffect) {
	listeners := s.compiled.ListenersFor(act.Type)
	if len(listeners) == 0 {
		return nil, nil
	}

	var frames []work
	var effects []deferredEffect
	for _, l := range listeners {
		id := l.Path.String()
		if WouldCycle(chain, id) && s.cycles.FirstWarning(flow.token, id) {
			s.logger.Warn("listener cycle at runtime",
				"listener", id, "chain", chain, "action", act.Type, "cascade", flow.token)
		}

		ev := model.Event{
			Type:    act.Type,
			Payload: act.Payload,
			Result:  act.Result,
			Error:   act.Error,
			Targets: l.Targets,
		}
		next := cascade{token: flow.token, chain: chain}.extend(id)

		if l.Listener().IsEffect() {
			s.cycles.Retain(flow.token)
			effects = append(effects, deferredEffect{entry: l, event: ev, flow: next})
			continue
		}
		frames = append(frames, work{
			action: model.Action{Type: l.Type(), Payload: ev},
			chain:  next.chain,
		})
	}
	return frames, effects
}

func (s *Store) observe(a model.Action, result any, changed bool, err error) {
	if len(s.observers) == 0 {
		return
	}
	rec := Record{
		Seq:     a.Meta.Seq,
		Cascade: a.Meta.Cascade,
		Depth:   a.Meta.Depth,
		Type:    a.Type,
		Payload: a.Payload,
		Result:  result,
		Changed: changed,
		Failed:  err != nil,
	}
	if rec.Result == nil {
		rec.Result = a.Result
	}
	if err != nil {
		rec.Error = err.Error()
	} else if a.Error != nil {
		rec.Error = a.Error.Error()
	}
	for _, o := range s.observers {
		o(rec)
	}
}
