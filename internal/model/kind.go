package model

import "reflect"

// Kind discriminates the entries of a model tree.
type Kind int

const (
	KindInvalid Kind = iota
	KindState
	KindModel
	KindMutator
	KindEffect
	KindComputed
	KindListener
	KindReducer
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindState:    "state",
	KindModel:    "model",
	KindMutator:  "mutator",
	KindEffect:   "effect",
	KindComputed: "computed",
	KindListener: "listener",
	KindReducer:  "reducer",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Callable reports whether nodes of this kind appear in the command tree.
func (k Kind) Callable() bool {
	return k == KindMutator || k == KindEffect
}

// Classify decides the kind of one model tree entry.
//
// Classification uses the node's own discriminant only:
//   - Node values report their own Kind.
//   - Model and map[string]any are nested models.
//   - Untagged functions are invalid.
//   - Everything else (nil, scalars, slices, structs, typed maps, time.Time)
//     is terminal state.
func Classify(v any) Kind {
	switch val := v.(type) {
	case nil:
		return KindState
	case Node:
		if isNilNode(val) {
			return KindInvalid
		}
		return val.Kind()
	case Model, map[string]any:
		return KindModel
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return KindInvalid
	}
	return KindState
}

func isNilNode(n Node) bool {
	rv := reflect.ValueOf(n)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
