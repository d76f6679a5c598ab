package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/probe"
)

// ErrNoActuator is returned by tap actions when the state has no device.
var ErrNoActuator = errors.New("no actuator configured")

func actuator(w *model.WorldState) (model.Actuator, error) {
	if w.Caps.Actuator == nil {
		return nil, ErrNoActuator
	}
	return w.Caps.Actuator, nil
}

// TapSignal taps the position stored under signal and then clears it, so a
// stale position is never tapped twice. Missing positions are a no-op.
func TapSignal(signal string) ActionFunc {
	return func(ctx context.Context, w *model.WorldState) error {
		pos, ok := w.Position(signal)
		if !ok {
			slog.Debug("tap skipped, signal has no position", "signal", signal)
			return nil
		}
		act, err := actuator(w)
		if err != nil {
			return err
		}
		slog.Debug("tapping signal", "signal", signal, "x", pos.X, "y", pos.Y)
		if err := act.Tap(ctx, pos); err != nil {
			return fmt.Errorf("tap %s: %w", signal, err)
		}
		w.Clear(signal)
		return nil
	}
}

// DefaultRaceTimeout bounds the probe race inside tap actions.
const DefaultRaceTimeout = 5 * time.Second

// TapTemplate probes for a template right now and taps it if found.
func TapTemplate(name string, timeout time.Duration) ActionFunc {
	return RaceTap(timeout, name)
}

// RaceTap probes all templates at once and taps whichever appears first.
// Finding none of them is not an error. A race still undecided after
// timeout (DefaultRaceTimeout when <= 0) fails with the context error.
func RaceTap(timeout time.Duration, names ...string) ActionFunc {
	if timeout <= 0 {
		timeout = DefaultRaceTimeout
	}
	return func(ctx context.Context, w *model.WorldState) error {
		act, err := actuator(w)
		if err != nil {
			return err
		}
		var tapErr error
		jobs := make([]probe.Job, 0, len(names))
		for _, name := range names {
			tpl, ok := w.Caps.Templates.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown template %q", name)
			}
			jobs = append(jobs, probe.TemplateJob(name, w.Caps.Prober, tpl, func(pos model.Position) {
				tapErr = act.Tap(ctx, pos)
			}))
		}
		res, err := probe.Race(ctx, jobs, probe.WithTimeout(timeout))
		if err != nil {
			return fmt.Errorf("race %v: %w", names, err)
		}
		if !res.Matched() {
			slog.Debug("race tap found nothing", "templates", names)
			return nil
		}
		if tapErr != nil {
			return fmt.Errorf("tap %s: %w", res.Name(), tapErr)
		}
		slog.Debug("race tap", "winner", res.Name())
		return nil
	}
}

// Wait pauses the device for d.
func Wait(d time.Duration) ActionFunc {
	return func(ctx context.Context, w *model.WorldState) error {
		if w.Caps.Actuator == nil {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return w.Caps.Actuator.Wait(ctx, d)
	}
}

// ClearSignals forgets the named signals.
func ClearSignals(names ...string) ActionFunc {
	return func(_ context.Context, w *model.WorldState) error {
		w.Clear(names...)
		return nil
	}
}

// MarkProgress records a completed unit of work.
func MarkProgress(c clock.Clock) ActionFunc {
	return func(_ context.Context, w *model.WorldState) error {
		w.MarkProgress(c.Now())
		return nil
	}
}

// Noop does nothing. Handy for rules that only exist to hold priority.
func Noop(context.Context, *model.WorldState) error { return nil }

// Sequence runs actions in order and stops at the first error.
func Sequence(actions ...ActionFunc) ActionFunc {
	return func(ctx context.Context, w *model.WorldState) error {
		for _, a := range actions {
			if err := a(ctx, w); err != nil {
				return err
			}
		}
		return nil
	}
}
