package agent

import (
	"context"
	"fmt"

	"github.com/jasoft/miniwowbot/journal"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/probe"
)

// Cadence says how often a group is refreshed.
type Cadence string

const (
	// CadenceFast groups are probed on every tick.
	CadenceFast Cadence = "fast"
	// CadenceSlow groups are probed only when the bot is idle and the
	// auxiliary-scan cooldown has elapsed.
	CadenceSlow Cadence = "slow"
)

// Mode says how a group's probes are combined.
type Mode string

const (
	// ModeRace keeps only the first signal found. The others are cleared.
	ModeRace Mode = "race"
	// ModeScan probes every signal and records each one independently.
	ModeScan Mode = "scan"
)

// SignalSpec binds a WorldState signal to the template that detects it.
type SignalSpec struct {
	Signal   string `yaml:"signal"`
	Template string `yaml:"template"`
}

// Group is a set of signals refreshed together.
type Group struct {
	Name    string       `yaml:"name"`
	Cadence Cadence      `yaml:"cadence"`
	Mode    Mode         `yaml:"mode"`
	Signals []SignalSpec `yaml:"signals"`
}

// Validate checks the group against the known templates.
func (g Group) Validate(ts model.Templates) error {
	if g.Name == "" {
		return fmt.Errorf("group name is required")
	}
	switch g.Cadence {
	case CadenceFast, CadenceSlow:
	default:
		return fmt.Errorf("group %q: unknown cadence %q", g.Name, g.Cadence)
	}
	switch g.Mode {
	case ModeRace, ModeScan:
	default:
		return fmt.Errorf("group %q: unknown mode %q", g.Name, g.Mode)
	}
	if len(g.Signals) == 0 {
		return fmt.Errorf("group %q: no signals", g.Name)
	}
	for _, s := range g.Signals {
		if s.Signal == "" {
			return fmt.Errorf("group %q: signal name is required", g.Name)
		}
		if _, ok := ts.Lookup(s.Template); !ok {
			return fmt.Errorf("group %q: signal %q: unknown template %q", g.Name, s.Signal, s.Template)
		}
	}
	return nil
}

func (g Group) signalNames() []string {
	names := make([]string, len(g.Signals))
	for i, s := range g.Signals {
		names[i] = s.Signal
	}
	return names
}

// refresh probes g and writes the results into the world.
func (a *Agent) refresh(ctx context.Context, g Group) {
	switch g.Mode {
	case ModeScan:
		a.scanGroup(ctx, g)
	default:
		a.raceGroup(ctx, g)
	}
}

func (a *Agent) raceGroup(ctx context.Context, g Group) {
	w := a.world
	w.Clear(g.signalNames()...)

	jobs := make([]probe.Job, 0, len(g.Signals))
	for _, s := range g.Signals {
		tpl, ok := w.Caps.Templates.Lookup(s.Template)
		if !ok {
			a.log.Error("unknown template", "group", g.Name, "signal", s.Signal, "template", s.Template)
			continue
		}
		jobs = append(jobs, probe.SignalJob(w, s.Signal, tpl))
	}

	res, err := probe.Race(ctx, jobs, probe.WithTimeout(a.raceTimeout), probe.WithLogger(a.log))
	if err != nil {
		a.log.Debug("race ended without a winner", "group", g.Name, "error", err)
	}

	winner := res.Name()
	if winner == a.lastWinner[g.Name] {
		return
	}
	a.lastWinner[g.Name] = winner
	if winner != "" {
		a.log.Debug("race won", "group", g.Name, "signal", winner)
		a.record(ctx, journal.Entry{Kind: journal.KindRace, Name: g.Name, Detail: winner})
	}
}

func (a *Agent) scanGroup(ctx context.Context, g Group) {
	w := a.world

	jobs := make([]probe.Job, 0, len(g.Signals))
	for _, s := range g.Signals {
		tpl, ok := w.Caps.Templates.Lookup(s.Template)
		if !ok {
			a.log.Error("unknown template", "group", g.Name, "signal", s.Signal, "template", s.Template)
			w.Clear(s.Signal)
			continue
		}
		jobs = append(jobs, probe.TemplateJob(s.Signal, w.Caps.Prober, tpl, nil))
	}

	for _, o := range probe.Scan(ctx, jobs, probe.WithTimeout(a.raceTimeout), probe.WithLogger(a.log)) {
		if o.Matched() {
			w.Set(o.Job.Name, o.Value)
		} else {
			w.Clear(o.Job.Name)
		}
	}
}
