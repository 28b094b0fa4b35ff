//go:build !windows

// Package console tells a terminal launch from a double-click and keeps
// Ctrl+C working on Windows while SDL holds the main thread.
package console

import "log/slog"

// Interactive is always true outside Windows.
func Interactive() bool { return true }

// OnInterrupt is a no-op outside Windows, where os.Interrupt is reliable.
func OnInterrupt(fn func(), logger *slog.Logger) (rearm func()) {
	return func() {}
}
