package gamepad

import (
	"context"
	"log/slog"
)

// Source produces samples at a fixed poll frequency until ctx ends.
type Source interface {
	Samples() <-chan Sample
	Run(ctx context.Context) error
}

// Emitter turns polled held-button snapshots into samples on a channel
// without blocking the poller. The held baseline only advances when a
// sample is accepted, so the edges of a dropped sample are reported again
// on the next poll instead of being lost.
type Emitter struct {
	out    chan<- Sample
	held   ButtonMask
	logger *slog.Logger
}

func NewEmitter(out chan<- Sample, logger *slog.Logger) *Emitter {
	return &Emitter{out: out, logger: logger}
}

// Held returns the last delivered button snapshot.
func (e *Emitter) Held() ButtonMask { return e.held }

// Emit fills s.Buttons with the edges from the last delivered snapshot to
// held and sends it. It reports whether the sample was accepted.
func (e *Emitter) Emit(s Sample, held ButtonMask) bool {
	s.Buttons = DiffButtons(e.held, held, s.At)
	select {
	case e.out <- s:
		e.held = held
		return true
	default:
		if len(s.Buttons) > 0 {
			e.logger.Warn("sample dropped, edges deferred to next poll", "buttons", len(s.Buttons))
		}
		return false
	}
}
