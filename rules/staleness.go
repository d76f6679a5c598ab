package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/notify"
)

const DefaultStaleDebugInterval = 30 * time.Second

// Staleness escalates when no progress has been confirmed for Threshold.
//
// While BusySignal is on (a battle or similar long activity is running) the
// condition stays false no matter how old the last progress is. The action
// runs Recover, alerts the operator and resets the progress timestamp, so
// one escalation is followed by a full Threshold of quiet.
type Staleness struct {
	Threshold     time.Duration
	BusySignal    string
	DebugInterval time.Duration
	Recover       ActionFunc
	Notifier      notify.Notifier
	Clock         clock.Clock
	Logger        *slog.Logger

	// OnEscalate, if set, is told about every escalation after it ran.
	OnEscalate func(ctx context.Context, elapsed time.Duration, err error)

	lastDebug time.Time
}

func (s *Staleness) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Staleness) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// debug emits the elapsed/threshold line at most once per DebugInterval.
func (s *Staleness) debug(now time.Time, age time.Duration, busy bool) {
	interval := s.DebugInterval
	if interval <= 0 {
		interval = DefaultStaleDebugInterval
	}
	if !s.lastDebug.IsZero() && now.Sub(s.lastDebug) < interval {
		return
	}
	s.lastDebug = now
	s.log().Debug("progress staleness",
		"elapsed", age.Round(time.Second),
		"threshold", s.Threshold,
		"busy", busy,
	)
}

// Condition reports whether the bot has gone Threshold without progress.
func (s *Staleness) Condition(w *model.WorldState) (bool, error) {
	if s.Threshold <= 0 {
		return false, fmt.Errorf("staleness threshold must be > 0, got %s", s.Threshold)
	}
	now := s.now()
	age := w.ProgressAge(now)
	busy := s.BusySignal != "" && w.Bool(s.BusySignal)
	s.debug(now, age, busy)
	if busy {
		return false, nil
	}
	return age >= s.Threshold, nil
}

// Action recovers, notifies and debounces. The progress timestamp is reset
// even when recovery fails so the next attempt waits a full Threshold.
func (s *Staleness) Action(ctx context.Context, w *model.WorldState) error {
	now := s.now()
	age := w.ProgressAge(now)
	s.log().Warn("no progress, escalating", "elapsed", age.Round(time.Second), "threshold", s.Threshold)

	var err error
	if s.Recover != nil {
		if rerr := s.Recover(ctx, w); rerr != nil {
			err = fmt.Errorf("stale recovery: %w", rerr)
		}
	}

	if s.Notifier != nil {
		msg := notify.Message{
			Title: "No progress",
			Body:  fmt.Sprintf("no progress for %s (threshold %s), recovery attempted", age.Round(time.Second), s.Threshold),
			Level: notify.LevelWarning,
			At:    now,
		}
		if err != nil {
			msg.Level = notify.LevelError
			msg.Body += ": " + err.Error()
		}
		if nerr := s.Notifier.Notify(ctx, msg); nerr != nil {
			s.log().Warn("stale notification failed", "error", nerr)
		}
	}

	w.MarkProgress(s.now())
	if s.OnEscalate != nil {
		s.OnEscalate(ctx, age, err)
	}
	return err
}

// Rule packages the escalation as a rule for the arbiter.
func (s *Staleness) Rule(name string) Rule {
	return Rule{Name: name, Condition: s.Condition, Action: s.Action}
}
