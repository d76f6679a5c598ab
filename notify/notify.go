// Package notify delivers operator alerts. Delivery is best-effort: callers
// log a failed Notify and carry on.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Level is the urgency of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one alert.
type Message struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Level Level     `json:"level"`
	At    time.Time `json:"at"`
}

// Notifier sends a message somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Log writes messages to slog. Used when no webhook is configured.
type Log struct{}

func (Log) Notify(ctx context.Context, m Message) error {
	level := slog.LevelInfo
	switch m.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	slog.Log(ctx, level, "notification", "title", m.Title, "body", m.Body)
	return nil
}
