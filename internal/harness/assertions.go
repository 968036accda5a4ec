package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
)

// AssertionError describes one failed post-flow check. When Trace is set the
// rendered message ends with the processed actions, indented by depth.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: want %s, got %s", e.Type, e.Expected, e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\ntrace:")
	for _, ev := range e.Trace {
		fmt.Fprintf(&b, "\n  [%d] %s%s %s", ev.Seq, strings.Repeat("  ", ev.Depth), ev.Type, render(ev.Payload))
	}
	return b.String()
}

// AssertionContext carries what the non-trace checks read from.
type AssertionContext struct {
	Ctx     context.Context
	Store   *engine.Store
	Storage persist.Storage
}

type checkFunc func(env *checkEnv, a Assertion) error

type checkEnv struct {
	result *Result
	actx   *AssertionContext
}

var checks = map[string]checkFunc{
	AssertTraceContains: checkTraceContains,
	AssertTraceOrder:    checkTraceOrder,
	AssertTraceCount:    checkTraceCount,
	AssertFinalState:    checkFinalState,
	AssertComputed:      checkComputed,
	AssertStorage:       checkStorage,
}

// EvaluateAssertions runs every assertion against a finished run and returns
// one message per failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	env := &checkEnv{result: result, actx: actx}
	var failures []string
	for i, a := range assertions {
		check, ok := checks[a.Type]
		if !ok {
			failures = append(failures, fmt.Sprintf("assertions[%d]: unknown assertion type %q", i, a.Type))
			continue
		}
		if err := check(env, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func checkTraceContains(env *checkEnv, a Assertion) error {
	trace := env.result.Trace
	for _, ev := range trace {
		if ev.Type == a.Action && (a.Payload == nil || matchValue(ev.Payload, a.Payload)) {
			return nil
		}
	}
	want := a.Action
	if a.Payload != nil {
		want += " " + render(a.Payload)
	}
	return &AssertionError{Type: a.Type, Expected: want, Actual: "no such action", Trace: trace}
}

// checkTraceOrder compares first occurrences only; other actions may sit
// in between.
func checkTraceOrder(env *checkEnv, a Assertion) error {
	trace := env.result.Trace
	first := make(map[string]int, len(a.Actions))
	for i := len(trace) - 1; i >= 0; i-- {
		first[trace[i].Type] = i + 1
	}

	want := strings.Join(a.Actions, " < ")
	for i, name := range a.Actions {
		if first[name] == 0 {
			return &AssertionError{Type: a.Type, Expected: want, Actual: "missing " + name, Trace: trace}
		}
		if i == 0 {
			continue
		}
		prev := a.Actions[i-1]
		if first[prev] >= first[name] {
			got := fmt.Sprintf("%s at #%d, %s at #%d", prev, first[prev], name, first[name])
			return &AssertionError{Type: a.Type, Expected: want, Actual: got, Trace: trace}
		}
	}
	return nil
}

func checkTraceCount(env *checkEnv, a Assertion) error {
	n := 0
	for _, ev := range env.result.Trace {
		if ev.Type == a.Action {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s x%d", a.Action, a.Count),
		Actual:   fmt.Sprintf("x%d", n),
		Trace:    env.result.Trace,
	}
}

// checkFinalState reads a dotted path; numeric segments index arrays.
func checkFinalState(env *checkEnv, a Assertion) error {
	got, ok := lookup(env.result.State, a.Path)
	if !ok {
		return valueMismatch(a, "path not found")
	}
	if !equalValues(got, a.Expect) {
		return valueMismatch(a, a.Path+" = "+render(got))
	}
	return nil
}

func checkComputed(env *checkEnv, a Assertion) error {
	if env.actx == nil || env.actx.Store == nil {
		return errors.New("computed: no store to read from")
	}
	got, err := env.actx.Store.Computed(a.Path)
	if err != nil {
		return valueMismatch(a, err.Error())
	}
	if !equalValues(got, a.Expect) {
		return valueMismatch(a, a.Path+" = "+render(got))
	}
	return nil
}

func checkStorage(env *checkEnv, a Assertion) error {
	if env.actx == nil || env.actx.Storage == nil {
		return errors.New("storage: no storage to read from")
	}
	raw, err := env.actx.Storage.Get(env.actx.Ctx, a.Key)
	notFound := errors.Is(err, persist.ErrNotFound)

	if a.Absent {
		if notFound {
			return nil
		}
		return &AssertionError{Type: a.Type, Expected: strconv.Quote(a.Key) + " absent", Actual: describeRaw(raw, err)}
	}

	want := strconv.Quote(a.Key) + " = " + render(a.Expect)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: want, Actual: describeRaw(raw, err)}
	}
	got, err := decodeJSON(raw)
	if err != nil {
		return fmt.Errorf("storage: key %q holds invalid JSON: %w", a.Key, err)
	}
	if !equalValues(got, a.Expect) {
		return &AssertionError{Type: a.Type, Expected: want, Actual: string(raw)}
	}
	return nil
}

func valueMismatch(a Assertion, got string) *AssertionError {
	return &AssertionError{Type: a.Type, Expected: a.Path + " = " + render(a.Expect), Actual: got}
}

func describeRaw(raw []byte, err error) string {
	if err != nil {
		return err.Error()
	}
	return string(raw)
}

// lookup walks objects by key and arrays by index.
func lookup(root state.Object, path string) (any, bool) {
	var cur any = root
	for _, seg := range state.ParsePath(path) {
		switch node := cur.(type) {
		case state.Object:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
