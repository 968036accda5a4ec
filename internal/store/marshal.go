package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/modeltree/internal/state"
)

// marshalValue converts a payload or result to canonical JSON TEXT.
// Values canonical JSON cannot represent are stored as their %v rendering
// so that journaling never fails an otherwise successful dispatch.
func marshalValue(v any) string {
	if v == nil {
		return "null"
	}
	data, err := state.MarshalCanonical(v)
	if err != nil {
		data, _ = state.MarshalCanonical(fmt.Sprintf("%v", v))
	}
	return string(data)
}

// unmarshalValue parses stored JSON TEXT, keeping numbers as json.Number.
func unmarshalValue(data string) (any, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
