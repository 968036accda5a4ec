package harness

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/modeltree/internal/state"
)

// equalValues compares by canonical JSON, so YAML ints match state ints
// and map key order never matters.
func equalValues(actual, expected any) bool {
	a, aerr := state.MarshalCanonical(plain(actual))
	e, eerr := state.MarshalCanonical(expected)
	if aerr != nil || eerr != nil {
		return false
	}
	return bytes.Equal(a, e)
}

// matchValue is equalValues with subset semantics for objects: keys
// missing from expected are ignored, at every depth.
func matchValue(actual, expected any) bool {
	exp, ok := expected.(map[string]any)
	if !ok {
		return equalValues(actual, expected)
	}
	act, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, ev := range exp {
		av, ok := act[k]
		if !ok || !matchValue(av, ev) {
			return false
		}
	}
	return true
}

func render(v any) string {
	data, err := state.MarshalCanonical(plain(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
