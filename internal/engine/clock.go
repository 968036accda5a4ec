package engine

import "sync/atomic"

// SequenceClock stamps processed actions with strictly increasing sequence
// numbers. testutil.DeterministicClock satisfies it.
type SequenceClock interface {
	Next() int64
	Current() int64
}

// Clock is the default logical clock. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
