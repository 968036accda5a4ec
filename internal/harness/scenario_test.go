package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
name: minimal
description: "one step"
model: counter
flow:
  - call: inc
assertions:
  - type: trace_count
    action: "@mutator.inc"
    count: 1
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "minimal", s.Cascade, "cascade defaults to the name")
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "inc", s.Flow[0].Target())
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimal + "\nassertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", `
description: d
model: counter
flow: [{call: inc}]
assertions: [{type: trace_count, action: x}]`, "name is required"},
		{"missing description", `
name: n
model: counter
flow: [{call: inc}]
assertions: [{type: trace_count, action: x}]`, "description is required"},
		{"unknown model", `
name: n
description: d
model: countr
flow: [{call: inc}]
assertions: [{type: trace_count, action: x}]`, `did you mean "counter"`},
		{"empty flow", `
name: n
description: d
model: counter
flow: []
assertions: [{type: trace_count, action: x}]`, "flow needs at least one step"},
		{"no assertions", `
name: n
description: d
model: counter
flow: [{call: inc}]`, "at least one assertion"},
		{"step without target", `
name: n
description: d
model: counter
flow: [{payload: 1}]
assertions: [{type: trace_count, action: x}]`, "one of call or dispatch"},
		{"step with both targets", `
name: n
description: d
model: counter
flow: [{call: inc, dispatch: X}]
assertions: [{type: trace_count, action: x}]`, "mutually exclusive"},
		{"expect in setup", `
name: n
description: d
model: counter
setup: [{call: inc, expect: {error: x}}]
flow: [{call: inc}]
assertions: [{type: trace_count, action: x}]`, "expect is not allowed"},
		{"unknown assertion", `
name: n
description: d
model: counter
flow: [{call: inc}]
assertions: [{type: vibes}]`, "unknown assertion type"},
		{"final_state without path", `
name: n
description: d
model: counter
flow: [{call: inc}]
assertions: [{type: final_state, expect: 1}]`, "final_state needs path"},
		{"storage absent and expect", `
name: n
description: d
model: profile
flow: [{call: setName, payload: x}]
assertions: [{type: storage, key: k, absent: true, expect: 1}]`, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Files(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(minimal), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	extra := filepath.Join(t.TempDir(), "single.yaml")
	require.NoError(t, os.WriteFile(extra, []byte(minimal), 0o644))

	files, err := Discover([]string{dir, extra})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml"), extra}, files)

	_, err = Discover([]string{filepath.Join(dir, "gone")})
	var nf *ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}
