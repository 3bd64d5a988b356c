package engine

import "sync/atomic"

// Clock hands out the seq stamped on every observer event. One clock is
// shared by all plans of an engine, so events of concurrently executing
// plans still interleave in a single total order.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first tick is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first tick is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next ticks the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last seq handed out, or the start value.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward so the next tick is past seq. A clock
// already at or beyond seq is left alone; the clock never runs backwards.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
