package dispatch

import (
	"context"
	"log/slog"

	"github.com/soar/padmapper/internal/engine"
)

// LogSink writes every firing to the log, at info when verbose and at
// debug otherwise.
type LogSink struct {
	logger  *slog.Logger
	verbose bool
}

func NewLogSink(logger *slog.Logger, verbose bool) *LogSink {
	return &LogSink{logger: logger, verbose: verbose}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, f engine.Firing) error {
	level := slog.LevelDebug
	if s.verbose {
		level = slog.LevelInfo
	}
	attrs := []any{"action", f.Action.Type(), "profile", f.ProfileID}
	if m := f.Mapping; m != nil {
		if m.KeyCode != 0 {
			attrs = append(attrs, "key_code", m.KeyCode)
		}
		if len(m.Modifiers) > 0 {
			attrs = append(attrs, "modifiers", m.Modifiers)
		}
		if m.Command != "" {
			attrs = append(attrs, "command", m.Command)
		}
	} else {
		attrs = append(attrs, "mapped", false)
	}
	s.logger.Log(ctx, level, "firing", attrs...)
	return nil
}
