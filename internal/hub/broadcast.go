package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
)

const (
	fullSyncInterval = 5 * time.Second
	deltaCountSync   = 100
)

// Broadcaster turns display-state changes into full/delta messages and
// forwards engine firings to every viewer. It doubles as a dispatch sink.
type Broadcaster struct {
	hub      *Hub
	displays <-chan gamepad.DisplayState
	logger   *slog.Logger

	mu        sync.Mutex
	lastState gamepad.DisplayState
	seq       atomic.Int64
}

func NewBroadcaster(h *Hub, displays <-chan gamepad.DisplayState, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:      h,
		displays: displays,
		logger:   logger,
	}
}

// Run consumes display states until ctx ends or the channel closes.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(fullSyncInterval)
	defer ticker.Stop()

	var deltaCount int

	for {
		select {
		case <-ctx.Done():
			return

		case state, ok := <-b.displays:
			if !ok {
				return
			}

			b.mu.Lock()
			delta := gamepad.ComputeDelta(b.lastState, state)
			b.lastState = state
			b.mu.Unlock()

			if delta.IsEmpty() {
				continue
			}
			deltaCount++

			// Periodic full sync lets late or lossy clients converge.
			if deltaCount >= deltaCountSync {
				b.sendFull(state)
				deltaCount = 0
			} else {
				b.broadcast(NewDeltaMessage(b.seq.Add(1), delta))
			}

		case <-ticker.C:
			if b.hub.Len() > 0 {
				b.sendFull(b.state())
			}
		}
	}
}

func (b *Broadcaster) state() gamepad.DisplayState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastState
}

// SendInitialState sends the current full state to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	state := b.state()
	b.hub.Send(c, NewFullMessage(b.seq.Add(1), &state))
}

func (b *Broadcaster) sendFull(state gamepad.DisplayState) {
	b.broadcast(NewFullMessage(b.seq.Add(1), &state))
}

func (b *Broadcaster) broadcast(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	b.hub.Broadcast(data)
}

func (b *Broadcaster) Name() string { return "hub" }

// Deliver forwards a firing to every viewer.
func (b *Broadcaster) Deliver(ctx context.Context, f engine.Firing) error {
	if b.hub.Len() == 0 {
		return nil
	}
	b.broadcast(NewFiringMessage(b.seq.Add(1), &f))
	return nil
}
