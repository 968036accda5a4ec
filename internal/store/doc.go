// Package store provides SQLite-backed durable storage for persisted model
// state and the action journal.
//
// The database holds three tables:
//   - kv: the live value of every persisted key
//   - kv_history: every value a key ever had, append-only
//   - actions: one row per processed action, keyed by (cascade, seq)
//
// # Ordering
//
// Journal queries order by seq, the store's logical clock, and never by
// wall time, so reading a cascade back yields the order it was processed
// in. History is ordered by the per-key version counter.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Store implements persist.Storage and persist.Lister.
package store
