package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jasoft/miniwowbot/model"
)

// Option tunes a single Race or Scan call.
type Option func(*options)

type options struct {
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout bounds the whole call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sends probe-fault logs to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func (o options) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// outcome is what a detector goroutine reports back.
type outcome struct {
	index int
	value any
	err   error
}

// Race runs every job's detector concurrently and returns the first job to
// produce a positive result, after running that job's OnMatch on the calling
// goroutine.
//
// A negative result or a probe fault drops that job from the race; the race
// ends with no winner only once every job has come back negative. Losers are
// cancelled through their context but Race does not wait for them: whatever
// they return later lands in a buffered channel nobody reads, so a second
// handler can never fire.
//
// When ctx is cancelled or the timeout expires first, Race returns no winner
// together with the context error.
func Race(ctx context.Context, jobs []Job, opts ...Option) (Result, error) {
	if len(jobs) == 0 {
		return Result{}, nil
	}
	o := buildOptions(opts)

	raceCtx, cancel := o.context(ctx)
	defer cancel()

	// Buffered to len(jobs) so stragglers never block after we return.
	results := make(chan outcome, len(jobs))
	for i := range jobs {
		go run(raceCtx, i, jobs[i].Detect, results)
	}

	pending := len(jobs)
	for pending > 0 {
		select {
		case <-raceCtx.Done():
			return Result{}, raceCtx.Err()
		case res := <-results:
			pending--
			job := &jobs[res.index]
			if res.err != nil {
				o.logger.Warn("probe fault", "job", job.Name, "error", res.err)
				continue
			}
			if !model.Truthy(res.value) {
				continue
			}

			cancel()
			o.logger.Debug("race won", "job", job.Name, "pending", pending)
			if job.OnMatch != nil {
				job.OnMatch(res.value)
			}
			return Result{Job: job, Value: res.value}, nil
		}
	}
	// The last detector may have given up because the deadline hit.
	return Result{}, raceCtx.Err()
}

// run executes one detector, converting a panic into a probe fault.
func run(ctx context.Context, index int, detect DetectFunc, out chan<- outcome) {
	res := outcome{index: index}
	defer func() {
		if r := recover(); r != nil {
			res.value = nil
			res.err = fmt.Errorf("detector panic: %v", r)
		}
		out <- res
	}()
	if detect == nil {
		res.err = fmt.Errorf("job %d has no detector", index)
		return
	}
	res.value, res.err = detect(ctx)
}
