package value

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// Every Value is stamped from the package clock at construction. Stamps are
// strictly increasing within a process and carry no wall-clock meaning, so
// ordering never depends on system time adjustments. The engine keeps its
// own Clock for entry change sequence numbers.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next stamp.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

var stamps = NewClock()
