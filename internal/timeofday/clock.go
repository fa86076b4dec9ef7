package timeofday

import (
	"sync"
	"time"
)

// Clock is injected wherever "now" matters so evaluation stays deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// SystemClock reads the wall clock in loc (time.Local when nil).
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Today returns the calendar date stamp of the clock's now.
func Today(c Clock) string {
	return FormatDate(c.Now())
}
