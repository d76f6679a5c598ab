package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/journal"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/rules"
)

const (
	DefaultFastInterval  = 200 * time.Millisecond
	DefaultSlowInterval  = 10 * time.Second
	DefaultRaceTimeout   = 5 * time.Second
	DefaultActionTimeout = 30 * time.Second
)

// Recorder is where the agent journals what it did. *journal.Journal
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Agent owns the decision loop for a single device session.
//
// Each tick refreshes the signal groups, asks the arbiter for the winning
// rule and runs its action. Everything happens on the goroutine calling
// Run; the only cross-goroutine entry point is Stop.
type Agent struct {
	world   *model.WorldState
	arbiter *rules.Arbiter
	groups  []Group

	clock         clock.Clock
	journal       Recorder
	log           *slog.Logger
	fastInterval  time.Duration
	slowInterval  time.Duration
	raceTimeout   time.Duration
	actionTimeout time.Duration
	busySignal    string

	stop       atomic.Bool
	lastRule   string
	lastWinner map[string]string
	prev       map[string]any
}

// Option configures an Agent.
type Option func(*Agent)

func WithClock(c clock.Clock) Option { return func(a *Agent) { a.clock = c } }

func WithJournal(r Recorder) Option { return func(a *Agent) { a.journal = r } }

func WithLogger(l *slog.Logger) Option { return func(a *Agent) { a.log = l } }

// WithIntervals sets the tick period and the auxiliary-scan cooldown.
func WithIntervals(fast, slow time.Duration) Option {
	return func(a *Agent) {
		if fast > 0 {
			a.fastInterval = fast
		}
		if slow > 0 {
			a.slowInterval = slow
		}
	}
}

// WithBusySignal names the signal that suspends slow groups while it is on.
func WithBusySignal(name string) Option { return func(a *Agent) { a.busySignal = name } }

func WithRaceTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.raceTimeout = d
		}
	}
}

// WithActionTimeout bounds a single rule action, so a device that stops
// answering cannot hold the loop inside one tick.
func WithActionTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.actionTimeout = d
		}
	}
}

func New(world *model.WorldState, arbiter *rules.Arbiter, groups []Group, opts ...Option) *Agent {
	a := &Agent{
		world:         world,
		arbiter:       arbiter,
		groups:        groups,
		clock:         clock.Real{},
		log:           slog.Default(),
		fastInterval:  DefaultFastInterval,
		slowInterval:  DefaultSlowInterval,
		raceTimeout:   DefaultRaceTimeout,
		actionTimeout: DefaultActionTimeout,
		lastWinner:    make(map[string]string),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Stop asks Run to return before its next tick. Safe from any goroutine.
func (a *Agent) Stop() { a.stop.Store(true) }

// Run ticks every fast interval until ctx is cancelled or Stop is called.
// It returns nil after Stop and ctx.Err() after cancellation.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("decision loop started",
		"fast_interval", a.fastInterval,
		"slow_interval", a.slowInterval,
		"rules", len(a.arbiter.Rules()),
		"groups", len(a.groups),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if a.stop.Load() {
			a.log.Info("decision loop stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			a.log.Info("decision loop cancelled")
			return ctx.Err()
		case <-timer.C:
		}
		if a.stop.Load() {
			a.log.Info("decision loop stopped")
			return nil
		}

		a.Tick(ctx)
		timer.Reset(a.fastInterval)
	}
}

// Tick runs one decision step and returns the rule that acted, if any.
// Action errors and panics are logged and journaled; they never escape.
func (a *Agent) Tick(ctx context.Context) *rules.Rule {
	for _, g := range a.groups {
		if g.Cadence != CadenceSlow {
			a.refresh(ctx, g)
		}
	}

	now := a.clock.Now()
	busy := a.busySignal != "" && a.world.Bool(a.busySignal)
	if !busy && a.hasSlowGroups() && a.world.AuxScanAge(now) >= a.slowInterval {
		for _, g := range a.groups {
			if g.Cadence == CadenceSlow {
				a.refresh(ctx, g)
			}
		}
		a.world.MarkAuxScan(a.clock.Now())
	}
	if ctx.Err() != nil {
		return nil
	}

	r := a.arbiter.Select(a.world)
	a.noteSwitch(ctx, r)
	if r != nil {
		if err := a.act(ctx, r); err != nil {
			a.log.Error("rule action failed", "rule", r.Name, "error", err)
			a.record(ctx, journal.Entry{Kind: journal.KindActionFault, Name: r.Name, Detail: err.Error()})
		}
	}

	cur := a.world.Snapshot()
	for _, e := range DetectEvents(a.prev, cur) {
		a.log.Debug("signal edge", "signal", e.Signal, "kind", e.Kind)
		a.record(ctx, journal.Entry{Kind: journal.KindSignalEdge, Name: e.Signal, Detail: e.String()})
	}
	a.prev = cur

	return r
}

func (a *Agent) hasSlowGroups() bool {
	for _, g := range a.groups {
		if g.Cadence == CadenceSlow {
			return true
		}
	}
	return false
}

// act runs the rule's action under the action timeout, turning a panic
// into an error.
func (a *Agent) act(ctx context.Context, r *rules.Rule) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("action panic: %v", p)
		}
	}()
	if r.Action == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.actionTimeout)
	defer cancel()
	return r.Action(ctx, a.world)
}

func (a *Agent) noteSwitch(ctx context.Context, r *rules.Rule) {
	name := ""
	if r != nil {
		name = r.Name
	}
	if name == a.lastRule {
		return
	}
	a.log.Info("active rule changed", "from", a.lastRule, "to", name)
	a.record(ctx, journal.Entry{
		Kind:   journal.KindRuleSwitch,
		Name:   name,
		Detail: fmt.Sprintf("%s -> %s", displayRule(a.lastRule), displayRule(name)),
	})
	a.lastRule = name
}

func displayRule(name string) string {
	if name == "" {
		return "(idle)"
	}
	return name
}

// RecordEscalation journals a staleness escalation. It matches
// rules.Staleness.OnEscalate.
func (a *Agent) RecordEscalation(ctx context.Context, elapsed time.Duration, err error) {
	detail := fmt.Sprintf("no progress for %s", elapsed.Round(time.Second))
	if err != nil {
		detail += ": " + err.Error()
	}
	a.record(ctx, journal.Entry{Kind: journal.KindEscalation, Name: "staleness", Detail: detail})
}

// record journals e. Journal failures are logged and otherwise ignored.
func (a *Agent) record(ctx context.Context, e journal.Entry) {
	if a.journal == nil {
		return
	}
	if e.At.IsZero() {
		e.At = a.clock.Now()
	}
	if err := a.journal.Record(ctx, e); err != nil {
		a.log.Warn("journal write failed", "kind", e.Kind, "error", err)
	}
}
