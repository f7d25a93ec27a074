package shared

import (
	"sync"
	"time"
)

// Clock supplies timestamps for workflow records.
type Clock interface {
	Now() time.Time
}

// MonotonicClock never returns a timestamp earlier than one it already returned,
// so records created later never sort before records created earlier.
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMonotonicClock wraps source, defaulting to time.Now in UTC.
func NewMonotonicClock(source func() time.Time) *MonotonicClock {
	if source == nil {
		source = func() time.Time { return time.Now().UTC() }
	}
	return &MonotonicClock{now: source}
}

// Now returns the source time, clamped to the last issued timestamp.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// ManualClock is a settable Clock for tests and replay.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock starts at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
