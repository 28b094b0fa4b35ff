package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/padmapper/internal/action"
	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/profile"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func firing(m *profile.Mapping) engine.Firing {
	return engine.Firing{
		Action:    action.SinglePress{Button: gamepad.ButtonA},
		Mapping:   m,
		ProfileID: uuid.New(),
		At:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPumpFansOutAndSurvivesErrors(t *testing.T) {
	var got []string
	failing := SinkFunc(func(ctx context.Context, f engine.Firing) error {
		got = append(got, "failing")
		return errors.New("boom")
	})
	ok := SinkFunc(func(ctx context.Context, f engine.Firing) error {
		got = append(got, f.Action.Type())
		return nil
	})

	firings := make(chan engine.Firing, 2)
	firings <- firing(nil)
	firings <- firing(nil)
	close(firings)

	require.NoError(t, NewPump(discard(), failing, ok).Run(context.Background(), firings))
	assert.Equal(t, []string{"failing", "single_press", "failing", "single_press"}, got)
}

func TestPumpStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPump(discard()).Run(ctx, make(chan engine.Firing))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	require.NoError(t, NewLogSink(logger, false).Deliver(context.Background(), firing(nil)))
	assert.Empty(t, buf.String(), "quiet sink logs at debug")

	m := &profile.Mapping{KeyCode: 10, Command: "open"}
	require.NoError(t, NewLogSink(logger, true).Deliver(context.Background(), firing(m)))
	assert.Contains(t, buf.String(), "action=single_press")
	assert.Contains(t, buf.String(), "key_code=10")
	assert.Contains(t, buf.String(), "command=open")
}

func TestWebhookSinkPosts(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(time.Second, 2, discard())
	require.NoError(t, sink.Deliver(context.Background(), firing(&profile.Mapping{Webhook: srv.URL})))
	require.NoError(t, sink.Deliver(context.Background(), firing(&profile.Mapping{KeyCode: 1})))
	require.NoError(t, sink.Deliver(context.Background(), firing(nil)))
	require.NoError(t, sink.Close())

	require.Len(t, bodies, 1)
	var back engine.Firing
	require.NoError(t, json.Unmarshal(bodies[0], &back))
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, back.Action)
	assert.Equal(t, srv.URL, back.Mapping.Webhook)
}

func TestWebhookSinkDropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	sink := NewWebhookSink(5*time.Second, 1, discard())
	m := &profile.Mapping{Webhook: srv.URL}
	require.NoError(t, sink.Deliver(context.Background(), firing(m)))
	assert.Error(t, sink.Deliver(context.Background(), firing(m)))

	close(release)
	require.NoError(t, sink.Close())
}

func TestWebhookSinkBadStatusIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	sink := NewWebhookSink(time.Second, 1, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, sink.Deliver(context.Background(), firing(&profile.Mapping{Webhook: srv.URL})))
	require.NoError(t, sink.Close())
	assert.Contains(t, buf.String(), "webhook failed")
}
