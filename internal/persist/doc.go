// Package persist connects a store to a key-value storage collaborator.
//
// A Persister owns one persisted subtree of the state tree (Config.Path).
// Every allowed top-level key under that subtree is stored under its own
// storage key as canonical JSON.
//
// Lifecycle:
//
//	p, _ := persist.New(storage, cfg, logger)
//	initial, err := p.Hydrate(ctx, defaults) // err: fall back to defaults
//	p.Prime(initial)
//	p.Start()
//	p.Enqueue(next)                         // after each changed dispatch
//	p.Close(ctx)                            // final flush
//
// Storage failures never touch in-memory state. A failed hydration returns
// the defaults unchanged; a failed write is logged, kept in LastErr, and
// retried with the next snapshot.
package persist
