// Package dispatch hands engine firings to their consumers. Delivery is
// fire-and-forget: the engine never waits on a sink.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/soar/padmapper/internal/engine"
)

// Sink consumes firings. Deliver must not block for long; slow work
// belongs on the sink's own goroutines.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, f engine.Firing) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f engine.Firing) error

func (SinkFunc) Name() string { return "func" }

func (fn SinkFunc) Deliver(ctx context.Context, f engine.Firing) error { return fn(ctx, f) }

// Pump fans firings out to every sink in order.
type Pump struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewPump(logger *slog.Logger, sinks ...Sink) *Pump {
	return &Pump{sinks: sinks, logger: logger}
}

// Run delivers until ctx ends or firings is closed. Sink errors are logged
// and never stop the pump.
func (p *Pump) Run(ctx context.Context, firings <-chan engine.Firing) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-firings:
			if !ok {
				return nil
			}
			p.deliver(ctx, f)
		}
	}
}

func (p *Pump) deliver(ctx context.Context, f engine.Firing) {
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, f); err != nil {
			p.logger.Warn("delivery failed", "sink", s.Name(), "action", f.Action.Type(), "error", err)
		}
	}
}
