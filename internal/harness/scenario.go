package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/modeltree/internal/demo"
)

// Scenario is a scripted run against one registered demo model, loaded from
// YAML. Unknown keys are rejected.
type Scenario struct {
	// Name is unique within a directory and names the golden snapshot.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Model is the demo registry name to instantiate.
	Model string `yaml:"model"`

	// Cascade prefixes the sequential cascade tokens. Defaults to Name.
	Cascade string `yaml:"cascade,omitempty"`

	// Storage seeds the memory storage before hydration. Values are raw
	// serialized JSON.
	Storage map[string]string `yaml:"storage,omitempty"`

	// Setup steps run before the flow and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions are checked once the flow finishes and the store closes.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes a command or dispatches a raw action.
type Step struct {
	// Call is the dotted path of a mutator or effect.
	Call string `yaml:"call,omitempty"`

	// Dispatch is a raw action type.
	Dispatch string `yaml:"dispatch,omitempty"`

	Payload any `yaml:"payload,omitempty"`

	// Expect validates the step's outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Target is the command path or action type the step addresses.
func (s Step) Target() string {
	if s.Call != "" {
		return s.Call
	}
	return s.Dispatch
}

// Expect specifies the expected step outcome.
type Expect struct {
	// Result is matched against the returned value; objects match as
	// subsets. A nil Result is not checked.
	Result any `yaml:"result,omitempty"`

	// Error, when set, must be contained in the returned error.
	Error string `yaml:"error,omitempty"`

	// Code, when set, is the expected engine.RuntimeError code.
	Code string `yaml:"code,omitempty"`
}

func (e *Expect) wantsError() bool {
	return e != nil && (e.Error != "" || e.Code != "")
}

// Assertion is one post-flow check. Which fields apply depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	Action  string   `yaml:"action,omitempty"`  // trace_contains, trace_count
	Payload any      `yaml:"payload,omitempty"` // trace_contains, subset match
	Count   int      `yaml:"count,omitempty"`   // trace_count
	Actions []string `yaml:"actions,omitempty"` // trace_order

	// Path is a dotted state path (final_state) or computed path (computed).
	Path string `yaml:"path,omitempty"`

	// Key is the storage key (storage).
	Key string `yaml:"key,omitempty"`

	// Expect is the expected value (final_state, computed, storage).
	Expect any `yaml:"expect,omitempty"`

	// Absent asserts that the storage key was never written (storage).
	Absent bool `yaml:"absent,omitempty"`
}

const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertComputed      = "computed"
	AssertStorage       = "storage"
)

// LoadScenario reads path and hands it to ParseScenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes one YAML document and checks it for completeness.
// Cascade falls back to Name.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	s := new(Scenario)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	if s.Cascade == "" {
		s.Cascade = s.Name
	}
	return s, nil
}

func (s *Scenario) validate() error {
	required := []struct {
		missing bool
		field   string
	}{
		{s.Name == "", "name"},
		{s.Description == "", "description"},
		{s.Model == "", "model"},
	}
	for _, r := range required {
		if r.missing {
			return fmt.Errorf("%s is required", r.field)
		}
	}
	if _, err := demo.Lookup(s.Model); err != nil {
		return err
	}
	if len(s.Flow) == 0 {
		return errors.New("flow needs at least one step")
	}
	if len(s.Assertions) == 0 {
		return errors.New("needs at least one assertion")
	}

	for i, step := range s.Setup {
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
		if err := step.validate(); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := step.validate(); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	if (st.Call == "") == (st.Dispatch == "") {
		if st.Call == "" {
			return errors.New("one of call or dispatch is required")
		}
		return errors.New("call and dispatch are mutually exclusive")
	}
	return nil
}

func (a Assertion) validate() error {
	need := func(ok bool, what string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%s needs %s", a.Type, what)
	}
	switch a.Type {
	case "":
		return errors.New("type is required")
	case AssertTraceContains:
		return need(a.Action != "", "action")
	case AssertTraceOrder:
		return need(len(a.Actions) > 0, "actions")
	case AssertTraceCount:
		if err := need(a.Action != "", "action"); err != nil {
			return err
		}
		return need(a.Count >= 0, "a non-negative count")
	case AssertFinalState, AssertComputed:
		return need(a.Path != "", "path")
	case AssertStorage:
		if a.Absent && a.Expect != nil {
			return errors.New("absent and expect are mutually exclusive")
		}
		return need(a.Key != "", "key")
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}
