// Package health tracks per-provider circuit-breaker state and the
// system-wide pause flag that gates job execution.
package health

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProviderClass identifies one class of external provider
type ProviderClass string

const (
	ProviderSearch ProviderClass = "search"
	ProviderLLM    ProviderClass = "llm"
)

// CircuitState is the state of one provider's circuit breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ProviderStatus is the externally visible state of one provider class
type ProviderStatus struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailureMessage  string       `json:"last_failure_message,omitempty"`
	LastSuccessTime     time.Time    `json:"last_success_time,omitzero"`
}

// Snapshot is a point-in-time copy of the full health state
type Snapshot struct {
	Providers    map[ProviderClass]ProviderStatus `json:"providers"`
	SystemPaused bool                             `json:"system_paused"`
	PausedAt     time.Time                        `json:"paused_at,omitzero"`
	PauseReason  string                           `json:"pause_reason,omitempty"`
}

// Notifier receives health-state transition events. Implementations must
// not block; delivery is best-effort.
type Notifier interface {
	SystemPaused(reason string, snap Snapshot)
	SystemResumed(snap Snapshot)
}

// Tracker is the process-wide provider health service. Constructed once
// at startup and passed by reference to the scheduler and HTTP handlers.
type Tracker struct {
	mu        sync.Mutex
	providers map[ProviderClass]*ProviderStatus
	paused    bool
	pausedAt  time.Time
	reason    string

	notifier Notifier
	logger   *zap.Logger
}

// NewTracker creates a tracker with all circuits closed
func NewTracker(logger *zap.Logger, notifier Notifier) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		providers: map[ProviderClass]*ProviderStatus{
			ProviderSearch: {State: CircuitClosed},
			ProviderLLM:    {State: CircuitClosed},
		},
		notifier: notifier,
		logger:   logger,
	}
}

// RecordFailure registers a provider failure and returns whether this
// call newly opened the circuit, so callers can alert exactly once.
func (t *Tracker) RecordFailure(class ProviderClass, message string, threshold int) bool {
	if threshold <= 0 {
		threshold = 3
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.provider(class)
	p.ConsecutiveFailures++
	p.LastFailureMessage = message

	opened := false
	switch p.State {
	case CircuitHalfOpen:
		// A failure during the probe re-opens immediately
		p.State = CircuitOpen
	case CircuitClosed:
		if p.ConsecutiveFailures >= threshold {
			p.State = CircuitOpen
			opened = true
		}
	}

	t.logger.Warn("provider failure recorded",
		zap.String("provider", string(class)),
		zap.Int("consecutive_failures", p.ConsecutiveFailures),
		zap.String("state", string(p.State)),
		zap.String("message", message))

	return opened
}

// RecordSuccess resets the failure count and closes a half-open circuit
func (t *Tracker) RecordSuccess(class ProviderClass) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.provider(class)
	p.ConsecutiveFailures = 0
	p.LastSuccessTime = time.Now().UTC()
	if p.State == CircuitHalfOpen {
		p.State = CircuitClosed
	}
}

// Probe transitions an open circuit to half-open so the next call acts
// as a trial. This is an explicit operator/scheduler action, never
// automatic.
func (t *Tracker) Probe(class ProviderClass) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.provider(class)
	if p.State == CircuitOpen {
		p.State = CircuitHalfOpen
	}
}

// IsHealthy reports whether calls to the provider class may proceed.
// Half-open circuits are healthy: the next call is the probe.
func (t *Tracker) IsHealthy(class ProviderClass) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.provider(class).State != CircuitOpen
}

// Pause sets the global pause flag. Idempotent: a second pause while
// already paused keeps the original reason and timestamp. Returns
// whether this call changed state.
func (t *Tracker) Pause(reason string) bool {
	t.mu.Lock()
	if t.paused {
		t.mu.Unlock()
		return false
	}
	t.paused = true
	t.pausedAt = time.Now().UTC()
	t.reason = reason
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Warn("system paused", zap.String("reason", reason))
	if t.notifier != nil {
		t.notifier.SystemPaused(reason, snap)
	}
	return true
}

// Resume clears the pause flag and resets every circuit to closed.
// Resume is an explicit human action with manual verification behind it,
// so the whole tracker gets a fresh start rather than per-provider
// restoration. Returns whether this call changed state.
func (t *Tracker) Resume() bool {
	t.mu.Lock()
	if !t.paused {
		t.mu.Unlock()
		return false
	}
	t.paused = false
	t.pausedAt = time.Time{}
	t.reason = ""
	for _, p := range t.providers {
		p.State = CircuitClosed
		p.ConsecutiveFailures = 0
		p.LastFailureMessage = ""
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("system resumed, all circuits reset")
	if t.notifier != nil {
		t.notifier.SystemResumed(snap)
	}
	return true
}

// Paused reports the global pause flag
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Snapshot returns a copy of the full health state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{
		Providers:    make(map[ProviderClass]ProviderStatus, len(t.providers)),
		SystemPaused: t.paused,
		PausedAt:     t.pausedAt,
		PauseReason:  t.reason,
	}
	for class, p := range t.providers {
		snap.Providers[class] = *p
	}
	return snap
}

func (t *Tracker) provider(class ProviderClass) *ProviderStatus {
	p, ok := t.providers[class]
	if !ok {
		p = &ProviderStatus{State: CircuitClosed}
		t.providers[class] = p
	}
	return p
}
