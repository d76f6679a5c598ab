package rules

import (
	"time"

	"github.com/jasoft/miniwowbot/model"
)

// Env is what expr conditions see. Its methods are callable from rule
// source, e.g. `Signal("claim_button") && !Signal("battle_active")`.
type Env struct {
	world *model.WorldState
	now   time.Time
}

// NewEnv binds an Env to a state at a point in time.
func NewEnv(w *model.WorldState, now time.Time) Env {
	return Env{world: w, now: now}
}

// Signal reports whether a signal is currently on.
func (e Env) Signal(name string) bool {
	if e.world == nil {
		return false
	}
	return e.world.Bool(name)
}

// Has reports whether a signal has any recorded value, on or off.
func (e Env) Has(name string) bool {
	if e.world == nil {
		return false
	}
	_, ok := e.world.Get(name)
	return ok
}

// Value returns a numeric signal, or 0 when absent or not numeric.
// Booleans and positions read as 1 when on.
func (e Env) Value(name string) float64 {
	if e.world == nil {
		return 0
	}
	v, ok := e.world.Get(name)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
	case model.Position:
		if t.Found {
			return 1
		}
	}
	return 0
}

// ProgressAge is the number of seconds since the last confirmed progress.
func (e Env) ProgressAge() float64 {
	if e.world == nil {
		return 0
	}
	return e.world.ProgressAge(e.now).Seconds()
}

// AuxScanAge is the number of seconds since the slow signal group last ran.
func (e Env) AuxScanAge() float64 {
	if e.world == nil {
		return 0
	}
	return e.world.AuxScanAge(e.now).Seconds()
}
