package probe

import (
	"context"
	"fmt"

	"github.com/jasoft/miniwowbot/model"
)

// Func wraps an arbitrary detector as a Job.
func Func(name string, detect DetectFunc, onMatch func(any)) Job {
	return Job{Name: name, Detect: detect, OnMatch: onMatch}
}

// TemplateJob builds a job that asks the probe capability for tpl.
//
// The capability call runs on its own goroutine because device probes can
// take hundreds of milliseconds and may not watch ctx. If ctx ends first the
// job returns immediately and the capability's eventual answer is dropped.
func TemplateJob(name string, p model.Prober, tpl model.Template, onMatch func(model.Position)) Job {
	detect := func(ctx context.Context) (any, error) {
		return Offload(ctx, func() (model.Position, error) {
			return p.Probe(ctx, tpl)
		})
	}
	var handler func(any)
	if onMatch != nil {
		handler = func(v any) {
			if pos, ok := v.(model.Position); ok {
				onMatch(pos)
			}
		}
	}
	return Job{Name: name, Detect: detect, OnMatch: handler}
}

// SignalJob is a TemplateJob whose handler stores the found position in w
// under signal. The write happens in OnMatch, i.e. on the racing goroutine's
// caller, never on the detector goroutine.
func SignalJob(w *model.WorldState, signal string, tpl model.Template) Job {
	return TemplateJob(signal, w.Caps.Prober, tpl, func(pos model.Position) {
		w.Set(signal, pos)
	})
}

// Offload runs fn on a separate goroutine and waits for it or for ctx,
// whichever comes first. A result that arrives after ctx ended is discarded.
func Offload[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("probe panic: %v", p)
			}
			ch <- r
		}()
		r.v, r.err = fn()
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
