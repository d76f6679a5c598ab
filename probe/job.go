// Package probe runs screen detectors concurrently.
//
// Race implements first-match semantics: every job's detector starts at
// once, the first positive result wins, the rest are cancelled and exactly
// one handler fires. Scan runs every detector to completion and reports all
// outcomes, for signal groups that are not mutually exclusive.
//
// Detectors run on their own goroutines. Handlers always run on the
// caller's goroutine, so WorldState writes stay on the decision loop.
package probe

import "context"

// DetectFunc inspects the screen. A value model.Truthy rejects means
// "no match". An error is a probe fault and counts as no match too.
type DetectFunc func(ctx context.Context) (any, error)

// Job pairs a detector with the handler run if it wins a race.
// Jobs are built fresh for every race and never reused.
type Job struct {
	Name    string
	Detect  DetectFunc
	OnMatch func(v any)
}

// Result is the outcome of a race. Job is nil when nothing matched.
type Result struct {
	Job   *Job
	Value any
}

// Matched reports whether the race produced a winner.
func (r Result) Matched() bool { return r.Job != nil }

// Name returns the winning job's name, or "" when there is no winner.
func (r Result) Name() string {
	if r.Job == nil {
		return ""
	}
	return r.Job.Name
}
