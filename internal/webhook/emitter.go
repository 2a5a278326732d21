// Package webhook delivers best-effort outbound notifications on
// health-state transitions. Delivery errors are logged, never
// propagated, never retried.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/health"
)

// EventType names the outbound notification kinds
type EventType string

const (
	EventSystemPaused  EventType = "system_paused"
	EventSystemResumed EventType = "system_resumed"
)

// Event is the webhook payload
type Event struct {
	Type        EventType       `json:"type"`
	Reason      string          `json:"reason,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	HealthState health.Snapshot `json:"health_state"`
}

// Emitter posts events to a configured URL, optionally HMAC-signed.
// A zero-URL emitter is valid and drops every event.
type Emitter struct {
	url     string
	secret  string
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewEmitter creates an emitter. url may be empty to disable delivery.
func NewEmitter(url, secret string, timeout time.Duration, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

// Emit delivers a single event synchronously. Exposed for tests; most
// callers go through the background Notifier adapter below.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if e.url == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+Sign(body, e.secret))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status: %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of the payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notifier adapts the emitter to health.Notifier with fire-and-forget
// background delivery.
type Notifier struct {
	emitter *Emitter
	logger  *zap.Logger
}

// NewNotifier wraps an emitter for background delivery
func NewNotifier(emitter *Emitter, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{emitter: emitter, logger: logger}
}

// SystemPaused emits a system_paused event in the background
func (n *Notifier) SystemPaused(reason string, snap health.Snapshot) {
	n.fire(Event{
		Type:        EventSystemPaused,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
		HealthState: snap,
	})
}

// SystemResumed emits a system_resumed event in the background
func (n *Notifier) SystemResumed(snap health.Snapshot) {
	n.fire(Event{
		Type:        EventSystemResumed,
		Timestamp:   time.Now().UTC(),
		HealthState: snap,
	})
}

func (n *Notifier) fire(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.emitter.timeout)
		defer cancel()
		if err := n.emitter.Emit(ctx, event); err != nil {
			n.logger.Warn("webhook delivery failed",
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
	}()
}
