// Package clock provides the time source shared by the arbiter, the
// staleness escalation and the decision loop.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time. Real time in production, Manual in tests.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock. time.Now carries a monotonic reading, so
// differences between two Now values are immune to wall-clock jumps.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Manual is a clock that only moves when told to.
//
// Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock frozen at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Set jumps the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
