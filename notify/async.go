package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Async hands messages to a background goroutine so a slow webhook never
// stalls the decision loop. Notify never blocks: when the queue is full the
// message is dropped and counted.
type Async struct {
	next    Notifier
	queue   chan Message
	dropped atomic.Int64
}

// NewAsync wraps next. size is the number of messages that may wait.
func NewAsync(next Notifier, size int) *Async {
	if size <= 0 {
		size = 16
	}
	return &Async{next: next, queue: make(chan Message, size)}
}

func (a *Async) Notify(_ context.Context, m Message) error {
	select {
	case a.queue <- m:
	default:
		a.dropped.Add(1)
		slog.Warn("notification dropped, queue full", "title", m.Title)
	}
	return nil
}

// Dropped reports how many messages were discarded because the queue was full.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Start delivers queued messages until ctx is cancelled. It blocks.
func (a *Async) Start(ctx context.Context) {
	slog.Info("notifier started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("notifier stopped")
			return
		case m := <-a.queue:
			if err := a.next.Notify(ctx, m); err != nil {
				slog.Error("notification failed", "title", m.Title, "error", err)
			}
		}
	}
}
