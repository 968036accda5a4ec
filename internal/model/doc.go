// Package model defines the authoring vocabulary for model trees.
//
// A model tree is a nested Model mixing plain state values with tagged
// behavior nodes built by the constructors in this package:
//
//	Mutator / MutatorWithResult  synchronous, path-scoped state transition
//	Effect                       asynchronous routine with injected helpers
//	Computed                     memoized derived value over state
//	MutatorOn / EffectOn         listener re-fired when a target resolves
//	Reducer                      raw reducer owning its own subtree slice
//
// Every node carries an explicit Kind discriminant. Classify never sniffs
// structure: an untagged func is a configuration error and an untagged
// map[string]any is a nested Model.
package model
