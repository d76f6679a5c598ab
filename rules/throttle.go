package rules

import (
	"time"

	"github.com/jasoft/miniwowbot/clock"
)

// Category is the kind of diagnostic emitted for a rule on one evaluation.
type Category string

const (
	CategoryHit       Category = "hit"
	CategoryMiss      Category = "miss"
	CategoryPreempted Category = "preempted"
	CategoryFault     Category = "fault"
)

const (
	DefaultHitInterval  = time.Second
	DefaultMissInterval = 5 * time.Second
)

type throttleKey struct {
	rule     string
	category Category
}

// Throttle rate-limits diagnostics per (rule, category). The decision loop
// evaluates every rule several times a second; without this the log would
// be nothing but misses.
//
// Not safe for concurrent use. The arbiter only touches it from Select.
type Throttle struct {
	clock     clock.Clock
	intervals map[Category]time.Duration
	last      map[throttleKey]time.Time
}

// NewThrottle creates a throttle with the given hit and miss intervals.
// Preempted and fault lines share the hit interval.
func NewThrottle(c clock.Clock, hit, miss time.Duration) *Throttle {
	return &Throttle{
		clock: c,
		intervals: map[Category]time.Duration{
			CategoryHit:       hit,
			CategoryMiss:      miss,
			CategoryPreempted: hit,
			CategoryFault:     hit,
		},
		last: make(map[throttleKey]time.Time),
	}
}

// Allow reports whether a line for (rule, cat) may be emitted now, and if so
// records the emission.
func (t *Throttle) Allow(rule string, cat Category) bool {
	now := t.clock.Now()
	key := throttleKey{rule: rule, category: cat}
	if last, ok := t.last[key]; ok && now.Sub(last) < t.intervals[cat] {
		return false
	}
	t.last[key] = now
	return true
}
