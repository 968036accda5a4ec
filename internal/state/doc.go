// Package state provides the value representation of a store's state tree.
//
// A state tree is a nested Object (map[string]any) whose leaves are plain
// values: primitives, []any arrays, or terminal value types such as
// time.Time. This package imports nothing internal; every other package
// builds on it.
//
// Key constraints:
//   - The canonical tree is NEVER mutated in place. Mutator bodies edit a
//     copy-on-write Draft, and the Draft is committed as a list of Patches.
//   - Patches are applied with structural sharing: only the maps on the path
//     from a changed leaf to the root are copied; every untouched branch is
//     reused by reference.
//   - Change detection uses reference identity (Same), never a deep walk.
//
// Canonical JSON (MarshalCanonical) and domain-separated hashing (Hash) are
// used by the persistence layer to serialize snapshots deterministically.
package state
