package probe

import (
	"context"

	"github.com/jasoft/miniwowbot/model"
)

// Outcome is one job's result from a Scan.
type Outcome struct {
	Job   *Job
	Value any
	Err   error
}

// Matched reports whether the job produced a positive, fault-free result.
func (o Outcome) Matched() bool { return o.Err == nil && model.Truthy(o.Value) }

// Scan runs every job concurrently and waits for all of them. Outcomes come
// back in input order. Handlers are not invoked; the caller decides what to
// write. Faults are logged and reported in Outcome.Err.
//
// If ctx ends first, jobs still running are reported with the context error.
func Scan(ctx context.Context, jobs []Job, opts ...Option) []Outcome {
	if len(jobs) == 0 {
		return nil
	}
	o := buildOptions(opts)

	scanCtx, cancel := o.context(ctx)
	defer cancel()

	outcomes := make([]Outcome, len(jobs))
	done := make([]bool, len(jobs))
	for i := range jobs {
		outcomes[i].Job = &jobs[i]
	}

	results := make(chan outcome, len(jobs))
	for i := range jobs {
		go run(scanCtx, i, jobs[i].Detect, results)
	}

	for pending := len(jobs); pending > 0; pending-- {
		select {
		case <-scanCtx.Done():
			for i := range outcomes {
				if !done[i] {
					outcomes[i].Err = scanCtx.Err()
				}
			}
			return outcomes
		case res := <-results:
			done[res.index] = true
			outcomes[res.index].Value = res.value
			outcomes[res.index].Err = res.err
			if res.err != nil {
				o.logger.Warn("probe fault", "job", jobs[res.index].Name, "error", res.err)
			}
		}
	}
	return outcomes
}
