package rules

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/model"
)

// Action kinds accepted in Spec.Do.
const (
	DoTap         = "tap"          // tap the position stored under Target
	DoTapTemplate = "tap_template" // probe Target now and tap it if found
	DoRaceTap     = "race_tap"     // race Targets, tap the first one found
	DoWait        = "wait"         // only wait (see Spec.Wait)
	DoClear       = "clear"        // forget Target and Targets
	DoEscalate    = "escalate"     // the staleness escalation
	DoNoop        = "noop"
)

// Spec is a rule as written in the config file. Priority is list order.
type Spec struct {
	Name     string   `yaml:"name"`
	When     string   `yaml:"when"`
	Do       string   `yaml:"do"`
	Target   string   `yaml:"target,omitempty"`
	Targets  []string `yaml:"targets,omitempty"`
	Wait     string   `yaml:"wait,omitempty"`
	Progress bool     `yaml:"progress,omitempty"`
}

// Deps are the collaborators compiled rules close over.
type Deps struct {
	Clock     clock.Clock
	Templates model.Templates
	Staleness *Staleness

	// RaceTimeout bounds the probe race of tap_template and race_tap.
	RaceTimeout time.Duration
}

// Compile turns specs into rules, keeping their order. Conditions are
// compiled to expr bytecode up front so a typo fails at startup rather than
// on the first tick.
func Compile(specs []Spec, deps Deps) ([]Rule, error) {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	seen := make(map[string]bool, len(specs))
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("rule %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		r, err := compileRule(s, deps)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", s.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func compileRule(s Spec, deps Deps) (Rule, error) {
	if s.Do == DoEscalate {
		if deps.Staleness == nil {
			return Rule{}, fmt.Errorf("escalate needs a staleness config")
		}
		if s.When != "" {
			return Rule{}, fmt.Errorf("escalate rules take no condition")
		}
		r := deps.Staleness.Rule(s.Name)
		r.Source = "<no progress>"
		return r, nil
	}

	cond, err := CompileCondition(s.When, deps.Clock)
	if err != nil {
		return Rule{}, err
	}
	action, err := compileAction(s, deps)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Name: s.Name, Condition: cond, Action: action, Source: s.When}, nil
}

// CompileCondition compiles an expr source against Env.
func CompileCondition(src string, c clock.Clock) (ConditionFunc, error) {
	if src == "" {
		return nil, fmt.Errorf("condition is required")
	}
	prog, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	return func(w *model.WorldState) (bool, error) {
		return runCondition(prog, NewEnv(w, c.Now()))
	}, nil
}

func runCondition(prog *vm.Program, env Env) (bool, error) {
	result, err := vm.Run(prog, env)
	if err != nil {
		return false, err
	}
	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", result)
	}
	return match, nil
}

func compileAction(s Spec, deps Deps) (ActionFunc, error) {
	var steps []ActionFunc

	switch s.Do {
	case DoTap:
		if s.Target == "" {
			return nil, fmt.Errorf("tap needs a target signal")
		}
		steps = append(steps, TapSignal(s.Target))
	case DoTapTemplate:
		if err := checkTemplates(deps.Templates, s.Target); err != nil {
			return nil, err
		}
		steps = append(steps, TapTemplate(s.Target, deps.RaceTimeout))
	case DoRaceTap:
		if len(s.Targets) == 0 {
			return nil, fmt.Errorf("race_tap needs targets")
		}
		if err := checkTemplates(deps.Templates, s.Targets...); err != nil {
			return nil, err
		}
		steps = append(steps, RaceTap(deps.RaceTimeout, s.Targets...))
	case DoClear:
		names := append([]string(nil), s.Targets...)
		if s.Target != "" {
			names = append(names, s.Target)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("clear needs a target")
		}
		steps = append(steps, ClearSignals(names...))
	case DoWait:
		if s.Wait == "" {
			return nil, fmt.Errorf("wait action needs a wait duration")
		}
	case DoNoop, "":
	default:
		return nil, fmt.Errorf("unknown action %q", s.Do)
	}

	if s.Wait != "" {
		d, err := time.ParseDuration(s.Wait)
		if err != nil {
			return nil, fmt.Errorf("wait: %w", err)
		}
		steps = append(steps, Wait(d))
	}
	if s.Progress {
		steps = append(steps, MarkProgress(deps.Clock))
	}

	if len(steps) == 0 {
		return Noop, nil
	}
	return Sequence(steps...), nil
}

// checkTemplates is skipped when no template store was supplied.
func checkTemplates(ts model.Templates, names ...string) error {
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("template name is required")
		}
		if ts == nil {
			continue
		}
		if _, ok := ts.Lookup(n); !ok {
			return fmt.Errorf("unknown template %q", n)
		}
	}
	return nil
}
