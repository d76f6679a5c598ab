package rules

import (
	"context"

	"github.com/jasoft/miniwowbot/model"
)

// ConditionFunc decides whether a rule applies to the current state. It must
// not block: everything it needs is already in WorldState.
type ConditionFunc func(w *model.WorldState) (bool, error)

// ActionFunc carries out a rule. Actions may probe and tap the device and
// may update WorldState, including progress timestamps.
type ActionFunc func(ctx context.Context, w *model.WorldState) error

// Rule is the atomic unit of bot behavior: a condition → action pair.
// Priority is the rule's position in the list handed to NewArbiter.
type Rule struct {
	Name      string
	Condition ConditionFunc
	Action    ActionFunc

	// Source is the expr text the condition was compiled from, if any.
	// Kept for diagnostics and the validate command.
	Source string
}

// Always is a condition that always holds. Useful as a last-resort rule.
func Always(*model.WorldState) (bool, error) { return true, nil }

// When adapts a plain predicate over signals into a ConditionFunc.
func When(signal string) ConditionFunc {
	return func(w *model.WorldState) (bool, error) {
		return w.Bool(signal), nil
	}
}
