package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jasoft/miniwowbot/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the process logger. When a file is configured the
// returned closer must be closed on exit.
func newLogger(lc config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}
