package rules

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/notify"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// logRecorder keeps every slog record for assertions.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *logRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *logRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}
func (r *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *logRecorder) WithGroup(string) slog.Handler      { return r }

// lines returns "message rule" pairs, e.g. "rule hit R2".
func (r *logRecorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		line := rec.Message
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "rule" {
				line += " " + a.Value.String()
			}
			return true
		})
		out = append(out, line)
	}
	return out
}

func (r *logRecorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Message == msg {
			n++
		}
	}
	return n
}

func (r *logRecorder) reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// fakeDevice finds templates from a fixed table and records taps. A
// hanging device never answers a probe until its context ends.
type fakeDevice struct {
	mu      sync.Mutex
	found   map[string]model.Position
	taps    []model.Position
	waits   []time.Duration
	tapErr  error
	hanging bool
}

func (d *fakeDevice) Probe(ctx context.Context, t model.Template) (model.Position, error) {
	if d.hanging {
		<-ctx.Done()
		return model.Position{}, ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.found[t.Name], nil
}

func (d *fakeDevice) Tap(_ context.Context, p model.Position) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tapErr != nil {
		return d.tapErr
	}
	d.taps = append(d.taps, p)
	return nil
}

func (d *fakeDevice) Wait(_ context.Context, dur time.Duration) error {
	d.mu.Lock()
	d.waits = append(d.waits, dur)
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) tapped() []model.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Position(nil), d.taps...)
}

func newWorld(dev *fakeDevice, templates model.Templates, c clock.Clock) *model.WorldState {
	caps := model.Capabilities{Templates: templates}
	if dev != nil {
		caps.Prober = dev
		caps.Actuator = dev
	}
	return model.NewWorldState(caps, c.Now())
}

// fakeNotifier records messages and can be told to fail.
type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return n.err
}
