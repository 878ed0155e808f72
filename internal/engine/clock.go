package engine

import "sync/atomic"

// Clock counts completed automaton steps.
//
// The step index is the only notion of time the automaton has; wall-clock time
// is used for checkpoint and status intervals only.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so
// observers may read Current() while the loop advances it.
type Clock struct {
	step atomic.Uint64
}

// NewClock creates a clock at step 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock at a restored step index.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.step.Store(start)
	return c
}

// Next advances the clock and returns the new step index.
func (c *Clock) Next() uint64 {
	return c.step.Add(1)
}

// Current returns the index of the next step to run.
func (c *Clock) Current() uint64 {
	return c.step.Load()
}
