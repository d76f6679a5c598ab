package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
)

// Arbiter picks the single rule to act on each tick. Rules are checked in
// list order, earlier meaning higher priority. Every rule is evaluated so the
// diagnostics show the full picture, but only the first match is returned.
//
// Select runs synchronously on the decision loop and never blocks; the
// arbiter holds no lock because nothing else touches it.
type Arbiter struct {
	rules    []Rule
	clock    clock.Clock
	logger   *slog.Logger
	hit      time.Duration
	miss     time.Duration
	throttle *Throttle
}

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// WithClock sets the time source used for log throttling.
func WithClock(c clock.Clock) ArbiterOption {
	return func(a *Arbiter) { a.clock = c }
}

// WithLogger routes rule diagnostics to l.
func WithLogger(l *slog.Logger) ArbiterOption {
	return func(a *Arbiter) { a.logger = l }
}

// WithLogIntervals sets how often hit and miss lines may repeat per rule.
func WithLogIntervals(hit, miss time.Duration) ArbiterOption {
	return func(a *Arbiter) {
		a.hit = hit
		a.miss = miss
	}
}

// NewArbiter creates an arbiter over rules. The slice is copied so later
// changes by the caller cannot reorder priorities.
func NewArbiter(rules []Rule, opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		rules:  append([]Rule(nil), rules...),
		clock:  clock.Real{},
		logger: slog.Default(),
		hit:    DefaultHitInterval,
		miss:   DefaultMissInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.throttle = NewThrottle(a.clock, a.hit, a.miss)
	return a
}

// Rules returns the rules in priority order.
func (a *Arbiter) Rules() []Rule {
	return append([]Rule(nil), a.rules...)
}

// Select returns the highest-priority rule whose condition holds, or nil.
// A condition that fails or panics is logged and treated as false.
func (a *Arbiter) Select(w *model.WorldState) *Rule {
	var first *Rule
	for i := range a.rules {
		r := &a.rules[i]
		ok, err := evaluate(r, w)
		switch {
		case err != nil:
			if a.throttle.Allow(r.Name, CategoryFault) {
				a.logger.Error("rule condition error", "rule", r.Name, "priority", i, "error", err)
			}
		case ok && first == nil:
			first = r
			if a.throttle.Allow(r.Name, CategoryHit) {
				a.logger.Info("rule hit", "rule", r.Name, "priority", i)
			}
		case ok:
			if a.throttle.Allow(r.Name, CategoryPreempted) {
				a.logger.Debug("rule preempted", "rule", r.Name, "priority", i, "by", first.Name)
			}
		default:
			if a.throttle.Allow(r.Name, CategoryMiss) {
				a.logger.Debug("rule miss", "rule", r.Name, "priority", i)
			}
		}
	}
	return first
}

func evaluate(r *Rule, w *model.WorldState) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("condition panic: %v", p)
		}
	}()
	if r.Condition == nil {
		return false, fmt.Errorf("rule %q has no condition", r.Name)
	}
	return r.Condition(w)
}
