package compiler

import "github.com/roach88/modeltree/internal/state"

// Synthesized action type prefixes. A type is the prefix plus the dotted
// node path, so the same tree always yields the same types.
const (
	PrefixMutator  = "@mutator."
	PrefixEffect   = "@effect."
	PrefixListener = "@listener."
)

// Effect lifecycle phases.
const (
	PhaseStart   = "start"
	PhaseSuccess = "success"
	PhaseFail    = "fail"
)

// MutatorType is the action type handled by the mutator at p.
func MutatorType(p state.Path) string {
	return PrefixMutator + p.String()
}

// EffectType is the lifecycle action type for the effect at p.
func EffectType(p state.Path, phase string) string {
	return PrefixEffect + p.String() + "(" + phase + ")"
}

// ListenerType is the action type a mutator listener at p dispatches when
// it fires.
func ListenerType(p state.Path) string {
	return PrefixListener + p.String()
}

// ListenerEffectType is the completion type of the effect listener at p.
func ListenerEffectType(p state.Path, phase string) string {
	return PrefixListener + p.String() + "(" + phase + ")"
}
