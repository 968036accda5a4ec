package engine

import (
	"slices"
	"sync"
)

// CycleDetector deduplicates runtime cycle warnings.
//
// A cycle occurs when a listener fires again while an earlier firing of
// the same listener is on the active chain (the listener paths that led to
// the current action). Cascades are not broken; the detector only makes
// sure each (cascade, listener) cycle is reported once.
//
// Example cycle:
//
//	a.ping fires on b.pong → dispatches @listener.a.ping
//	→ b.pong fires on a.ping → dispatches @listener.b.pong
//	→ a.ping would fire again ← CYCLE WARNED
//
// A cascade is held by its top-level dispatch and by every effect still
// running under its token. History is dropped when the last holder releases.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[cascade]map[listener]bool
	holds   map[string]int
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
		holds:   make(map[string]int),
	}
}

// WouldCycle reports whether listener is already on chain.
func WouldCycle(chain []string, listener string) bool {
	return slices.Contains(chain, listener)
}

// FirstWarning records a cycle for (cascade, listener) and reports whether
// this is the first time it was seen.
func (c *CycleDetector) FirstWarning(cascade, listener string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[cascade] == nil {
		c.history[cascade] = make(map[string]bool)
	}
	if c.history[cascade][listener] {
		return false
	}
	c.history[cascade][listener] = true
	return true
}

// Retain marks cascade as still able to produce actions.
func (c *CycleDetector) Retain(cascade string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holds[cascade]++
}

// Release drops one hold on cascade and clears its history when none remain.
func (c *CycleDetector) Release(cascade string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holds[cascade]--; c.holds[cascade] > 0 {
		return
	}
	delete(c.holds, cascade)
	delete(c.history, cascade)
}

// HistorySize returns the number of cascades with recorded warnings.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
