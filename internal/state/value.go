package state

import (
	"reflect"
	"slices"
)

// Object is a nested state container.
type Object = map[string]any

// Array is the array representation used by Draft helpers.
type Array = []any

// Same reports whether a and b should be treated as the same value for
// change detection.
//
// Maps, pointers, channels and functions compare by reference. Slices compare
// by backing array and length, so a slice replaced by a fresh copy is never
// Same even when its elements are equal. Comparable values compare with ==.
// Anything else falls back to reflect.DeepEqual.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// ShallowEqual compares two slices element by element with Same.
// Used by the computed memoizer, one comparison per dependency slot.
func ShallowEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Same(a[i], b[i]) {
			return false
		}
	}
	return true
}

// GetIn returns the value at path p inside obj.
// The root path returns obj itself.
func GetIn(obj Object, p Path) (any, bool) {
	var cur any = obj
	for _, key := range p {
		m, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ObjectAt returns the Object at path p, or an empty Object if the path is
// missing or holds a non-object value.
func ObjectAt(obj Object, p Path) Object {
	v, ok := GetIn(obj, p)
	if !ok {
		return Object{}
	}
	m, ok := v.(Object)
	if !ok {
		return Object{}
	}
	return m
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// As converts v to T, returning the zero value when v holds another type.
func As[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Int reads a numeric value as an int. Hydrated JSON numbers arrive as
// float64, model defaults usually as int; both are accepted.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Float reads a numeric value as a float64.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return float64(Int(v))
	}
}
