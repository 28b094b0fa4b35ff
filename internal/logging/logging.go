// Package logging builds the slog loggers used across padmapper.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel converts a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

func ParseFormat(format string) (Format, error) {
	switch Format(strings.ToLower(format)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format: %s (must be text or json)", format)
	}
}

// New returns a logger writing to w. Unknown level or format names fall
// back to info/text.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	f, _ := ParseFormat(format)

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch f {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Component tags every record from logger with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
