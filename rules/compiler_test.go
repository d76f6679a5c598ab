package rules

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
)

var testTemplates = model.Templates{
	"home":  {Name: "home", Image: "home.png"},
	"back":  {Name: "back", Image: "back.png"},
	"close": {Name: "close", Image: "close.png"},
}

func TestCompile_PreservesOrderAndSource(t *testing.T) {
	c := clock.NewManual(t0)
	specs := []Spec{
		{Name: "claim", When: `Signal("claim_button")`, Do: DoTap, Target: "claim_button", Progress: true},
		{Name: "request", When: `Signal("request_button") && !Signal("battle_active")`, Do: DoTap, Target: "request_button"},
		{Name: "idle", When: `true`, Do: DoNoop},
	}
	rules, err := Compile(specs, Deps{Clock: c, Templates: testTemplates})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	for i, want := range []string{"claim", "request", "idle"} {
		if rules[i].Name != want {
			t.Errorf("rule %d: expected %q, got %q", i, want, rules[i].Name)
		}
	}
	if rules[0].Source != `Signal("claim_button")` {
		t.Errorf("unexpected source %q", rules[0].Source)
	}
}

func TestCompile_Errors(t *testing.T) {
	c := clock.NewManual(t0)
	tests := []struct {
		name string
		spec []Spec
		want string
	}{
		{"missing name", []Spec{{When: "true"}}, "name is required"},
		{"duplicate", []Spec{{Name: "a", When: "true"}, {Name: "a", When: "true"}}, "duplicate name"},
		{"missing condition", []Spec{{Name: "a"}}, "condition is required"},
		{"bad expr", []Spec{{Name: "a", When: `Signal(`}}, "condition"},
		{"not bool", []Spec{{Name: "a", When: `ProgressAge()`}}, "condition"},
		{"unknown function", []Spec{{Name: "a", When: `Nope("x")`}}, "condition"},
		{"unknown action", []Spec{{Name: "a", When: "true", Do: "fly"}}, "unknown action"},
		{"tap without target", []Spec{{Name: "a", When: "true", Do: DoTap}}, "target"},
		{"unknown template", []Spec{{Name: "a", When: "true", Do: DoTapTemplate, Target: "nope"}}, "unknown template"},
		{"race_tap without targets", []Spec{{Name: "a", When: "true", Do: DoRaceTap}}, "targets"},
		{"bad wait", []Spec{{Name: "a", When: "true", Do: DoTap, Target: "x", Wait: "soon"}}, "wait"},
		{"wait without duration", []Spec{{Name: "a", When: "true", Do: DoWait}}, "wait"},
		{"escalate without staleness", []Spec{{Name: "a", Do: DoEscalate}}, "staleness"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.spec, Deps{Clock: c, Templates: testTemplates})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %q", tc.want, err)
			}
		})
	}
}

func TestCompile_ConditionsReadWorldState(t *testing.T) {
	c := clock.NewManual(t0)
	rules, err := Compile([]Spec{
		{Name: "battle", When: `Signal("battle_active")`},
		{Name: "stuck", When: `ProgressAge() >= 300 && !Signal("battle_active")`},
		{Name: "energy", When: `Value("energy") > 0.5`},
		{Name: "seen", When: `Has("menu")`},
	}, Deps{Clock: c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newWorld(nil, nil, c)
	a := NewArbiter(rules, WithClock(c), WithLogger(slog.New(&logRecorder{})))
	if r := a.Select(w); r != nil {
		t.Fatalf("expected no rule on an empty world, got %q", r.Name)
	}

	selected := func() string {
		if r := a.Select(w); r != nil {
			return r.Name
		}
		return ""
	}

	w.Set("menu", false)
	if got := selected(); got != "seen" {
		t.Errorf("Has should see a signal even when it is off, got %q", got)
	}

	w.Set("energy", 0.8)
	if got := selected(); got != "energy" {
		t.Errorf("expected energy, got %q", got)
	}

	c.Advance(5 * time.Minute)
	if got := selected(); got != "stuck" {
		t.Errorf("expected stuck, got %q", got)
	}

	w.Set("battle_active", true)
	if got := selected(); got != "battle" {
		t.Errorf("expected battle, got %q", got)
	}
}

func TestCompile_TapWithProgress(t *testing.T) {
	c := clock.NewManual(t0)
	dev := &fakeDevice{}
	rules, err := Compile([]Spec{
		{Name: "claim", When: `Signal("claim_button")`, Do: DoTap, Target: "claim_button", Wait: "500ms", Progress: true},
	}, Deps{Clock: c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newWorld(dev, nil, c)
	w.Set("claim_button", model.At(300, 900))
	c.Advance(time.Minute)

	if err := rules[0].Action(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taps := dev.tapped(); !slices.Equal(taps, []model.Position{model.At(300, 900)}) {
		t.Errorf("expected a tap at (300,900), got %v", taps)
	}
	if !slices.Equal(dev.waits, []time.Duration{500 * time.Millisecond}) {
		t.Errorf("expected a 500ms wait, got %v", dev.waits)
	}
	if !w.LastProgress().Equal(c.Now()) {
		t.Errorf("expected progress at %s, got %s", c.Now(), w.LastProgress())
	}
	if w.Bool("claim_button") {
		t.Error("tapped position should be consumed")
	}
}

func TestCompile_RaceTapUsesRaceTimeout(t *testing.T) {
	c := clock.NewManual(t0)
	rules, err := Compile([]Spec{
		{Name: "home", When: "true", Do: DoTapTemplate, Target: "home"},
		{Name: "dismiss", When: "true", Do: DoRaceTap, Targets: []string{"back", "close"}},
	}, Deps{Clock: c, Templates: testTemplates, RaceTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newWorld(&fakeDevice{hanging: true}, testTemplates, c)
	for _, r := range rules {
		done := make(chan error, 1)
		go func() { done <- r.Action(context.Background(), w) }()
		select {
		case err := <-done:
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("rule %q: expected deadline exceeded, got %v", r.Name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("rule %q: action still blocked on a device that never answers", r.Name)
		}
	}
}

func TestCompile_Escalate(t *testing.T) {
	c := clock.NewManual(t0)
	s := &Staleness{Threshold: time.Minute, Clock: c, Logger: slog.New(&logRecorder{})}
	rules, err := Compile([]Spec{{Name: "stuck", Do: DoEscalate}}, Deps{Clock: c, Staleness: s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newWorld(nil, nil, c)
	ok, err := rules[0].Condition(w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("should not be stale yet")
	}

	c.Advance(time.Minute)
	if ok, _ = rules[0].Condition(w); !ok {
		t.Error("should be stale after the threshold")
	}

	_, err = Compile([]Spec{{Name: "stuck", When: "true", Do: DoEscalate}}, Deps{Clock: c, Staleness: s})
	if err == nil || !strings.Contains(err.Error(), "no condition") {
		t.Errorf("expected escalate with a condition to be rejected, got %v", err)
	}
}

func TestCompile_Clear(t *testing.T) {
	c := clock.NewManual(t0)
	rules, err := Compile([]Spec{
		{Name: "reset", When: "true", Do: DoClear, Target: "a", Targets: []string{"b"}},
	}, Deps{Clock: c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newWorld(nil, nil, c)
	w.Set("a", true)
	w.Set("b", true)
	w.Set("c", true)
	if err := rules[0].Action(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := w.Snapshot()
	if len(snap) != 1 || snap["c"] != true {
		t.Errorf("expected only c to remain, got %v", snap)
	}
}
