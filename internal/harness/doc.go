// Package harness runs YAML scenarios against the demo models and checks
// the resulting action trace and final state.
//
// # Scenario Format
//
//	name: todos_basic
//	description: "What this scenario validates"
//	model: todos            # a name registered in internal/demo
//	cascade: todos          # cascade token prefix, defaults to name
//	storage:                # optional seed for the memory storage
//	  "profile:theme": '"dark"'
//	setup:
//	  - call: add
//	    payload: milk
//	flow:
//	  - call: toggle        # a command path, or
//	    payload: 1
//	    expect:
//	      result: ...       # subset match against the returned value
//	      error: "substring"
//	      code: HANDLER_FAILED
//	  - dispatch: ROUTE     # a raw action type
//	    payload: /home
//	assertions:
//	  - type: trace_contains
//	    action: "@mutator.add"
//	    payload: milk
//	  - type: final_state
//	    path: items.0.done
//	    expect: true
//
// # Assertion Types
//
//   - trace_contains: an action of the given type, optionally with a
//     matching payload (subset match for objects), was processed
//   - trace_order: the given action types were processed in this order
//   - trace_count: an action type was processed exactly count times
//   - final_state: the value at a dotted state path
//   - computed: the value of a computed node
//   - storage: the persisted value under a storage key, or its absence
//
// # Deterministic Testing
//
// Every scenario runs on a fresh store with a testutil.DeterministicClock
// and sequential cascade tokens ("<cascade>-1", "<cascade>-2", ...), and
// waits for effects after every step. The same scenario therefore always
// produces the same trace, which RunWithGolden compares against
// testdata/golden/<name>.golden.
package harness
