// Package engine runs a compiled model tree as a centrally dispatched store.
//
// ARCHITECTURE:
//
// Critical section:
// Every dispatch (a mutator call, a raw action, an effect lifecycle action)
// takes the store mutex and runs to completion before the caller regains
// control: reduce, publish the snapshot, resolve listeners, and drain the
// resulting listener dispatches depth-first. Readers never take the mutex;
// State loads an atomically published snapshot.
//
// Cascade flow:
//  1. The action is stamped (logical clock seq, cascade token, depth)
//  2. The root reducer applies it to the current snapshot
//  3. Listeners registered on its type are resolved in registration order
//  4. Mutator listeners are pushed onto the cascade stack in reverse, so the
//     first registered runs first and its own cascade finishes before the
//     next listener fires
//  5. Effect listeners are deferred until the mutex is released
//
// After the section: subscribers are notified once (if state changed),
// persistence is handed the snapshot, deferred effect listeners start.
//
// Effects run on their own goroutines and return a Task. Each of their
// dispatches is a separate critical section, so concurrent effects
// interleave only at whole-dispatch granularity, in completion order.
//
// CRITICAL PATTERNS:
//
// Logical clock: every processed action carries Meta.Seq from the store's
// clock. Wall-clock time is never used for ordering.
//
// Unbounded cascades: listener cycles are warned about (statically at
// compile time and once per cascade at runtime) but never broken. The
// opt-in WithMaxCascadeSteps quota is the only limit.
package engine
