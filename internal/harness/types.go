package harness

import (
	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// TraceEvent is one processed action as the trace records it.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Cascade string `json:"cascade"`
	Depth   int    `json:"depth"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Changed bool   `json:"changed"`
}

func traceEvent(r engine.Record) TraceEvent {
	return TraceEvent{
		Seq:     r.Seq,
		Cascade: r.Cascade,
		Depth:   r.Depth,
		Type:    r.Type,
		Payload: plain(r.Payload),
		Result:  plain(r.Result),
		Error:   r.Error,
		Changed: r.Changed,
	}
}

// plain rewrites listener events and errors into JSON-friendly values.
func plain(v any) any {
	switch x := v.(type) {
	case model.Event:
		m := state.Object{"type": x.Type}
		if x.Payload != nil {
			m["payload"] = plain(x.Payload)
		}
		if x.Result != nil {
			m["result"] = plain(x.Result)
		}
		if x.Error != nil {
			m["error"] = x.Error.Error()
		}
		return m
	case error:
		return x.Error()
	}
	return v
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every processed action in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state tree.
	State state.Object `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
