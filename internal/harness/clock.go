package harness

import "sync/atomic"

// Clock is a monotonic logical clock stamping trace events.
//
// Scenario execution is sequential, so ordering never depends on wall
// time; the clock exists so traces carry an explicit, reproducible seq
// for golden comparison. Safe for concurrent use, which the stress
// runner relies on.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
