package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/modeltree/internal/state"
)

// TraceSnapshot captures the trace and final state of one scenario run.
// It is serialized as canonical JSON for byte-stable golden files.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        state.Object
}

// toCanonicalMap converts the snapshot to plain maps for canonical JSON.
// Empty optional fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":     event.Seq,
			"cascade": event.Cascade,
			"depth":   event.Depth,
			"type":    event.Type,
			"changed": event.Changed,
		}
		if event.Payload != nil {
			m["payload"] = event.Payload
		}
		if event.Result != nil {
			m["result"] = event.Result
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		traceList[i] = m
	}

	out := map[string]any{
		"scenario": s.ScenarioName,
		"trace":    traceList,
	}
	if s.State != nil {
		out["state"] = s.State
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against the golden file for
// scenarioName without re-running anything.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		State:        result.State,
	}
	data, err := state.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
