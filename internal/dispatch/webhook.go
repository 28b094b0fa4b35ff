package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soar/padmapper/internal/engine"
)

const defaultMaxInFlight = 8

// WebhookSink POSTs the JSON firing to the mapping's webhook URL. Requests
// run in the background; when MaxInFlight requests are already running the
// firing is dropped.
type WebhookSink struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	group   errgroup.Group
}

func NewWebhookSink(timeout time.Duration, maxInFlight int, logger *slog.Logger) *WebhookSink {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	s := &WebhookSink{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
	s.group.SetLimit(maxInFlight)
	return s
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver ignores firings without a webhook.
func (s *WebhookSink) Deliver(ctx context.Context, f engine.Firing) error {
	if f.Mapping == nil || f.Mapping.Webhook == "" {
		return nil
	}
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode firing: %w", err)
	}
	url := f.Mapping.Webhook
	requestID := uuid.NewString()

	started := s.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.post(ctx, url, requestID, body); err != nil {
			s.logger.Warn("webhook failed", "url", url, "request_id", requestID, "error", err)
			return nil
		}
		s.logger.Debug("webhook delivered", "url", url, "request_id", requestID)
		return nil
	})
	if !started {
		return fmt.Errorf("webhook %s dropped: too many requests in flight", url)
	}
	return nil
}

func (s *WebhookSink) post(ctx context.Context, url, requestID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "padmapper")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// Close waits for in-flight requests.
func (s *WebhookSink) Close() error {
	return s.group.Wait()
}
