package health

import (
	"testing"
)

func TestTracker_OpensExactlyOnThreshold(t *testing.T) {
	tracker := NewTracker(nil, nil)
	threshold := 3

	for i := 1; i <= 5; i++ {
		opened := tracker.RecordFailure(ProviderSearch, "timeout", threshold)
		if i < threshold && opened {
			t.Errorf("failure %d: circuit opened before threshold", i)
		}
		if i == threshold && !opened {
			t.Errorf("failure %d: expected circuit to newly open on threshold", i)
		}
		if i > threshold && opened {
			t.Errorf("failure %d: circuit reported newly opened after threshold", i)
		}
	}

	if tracker.IsHealthy(ProviderSearch) {
		t.Error("expected search to be unhealthy after opening")
	}
}

func TestTracker_StateBeforeThreshold(t *testing.T) {
	tracker := NewTracker(nil, nil)

	tracker.RecordFailure(ProviderSearch, "timeout", 3)
	tracker.RecordFailure(ProviderSearch, "timeout", 3)

	snap := tracker.Snapshot()
	if snap.Providers[ProviderSearch].State != CircuitClosed {
		t.Errorf("expected closed after 2 failures, got %s", snap.Providers[ProviderSearch].State)
	}

	tracker.RecordFailure(ProviderSearch, "timeout", 3)
	snap = tracker.Snapshot()
	if snap.Providers[ProviderSearch].State != CircuitOpen {
		t.Errorf("expected open after 3rd failure, got %s", snap.Providers[ProviderSearch].State)
	}
	if tracker.IsHealthy(ProviderSearch) {
		t.Error("expected IsHealthy(search) to be false with open circuit")
	}
}

func TestTracker_SuccessResetsFailures(t *testing.T) {
	tracker := NewTracker(nil, nil)

	tracker.RecordFailure(ProviderLLM, "rate limited", 3)
	tracker.RecordFailure(ProviderLLM, "rate limited", 3)
	tracker.RecordSuccess(ProviderLLM)

	snap := tracker.Snapshot()
	if got := snap.Providers[ProviderLLM].ConsecutiveFailures; got != 0 {
		t.Errorf("expected 0 consecutive failures after success, got %d", got)
	}

	// Two more failures should not open the circuit - the streak restarted
	tracker.RecordFailure(ProviderLLM, "rate limited", 3)
	opened := tracker.RecordFailure(ProviderLLM, "rate limited", 3)
	if opened {
		t.Error("circuit opened after only 2 post-reset failures")
	}
}

func TestTracker_HalfOpenTransitions(t *testing.T) {
	tracker := NewTracker(nil, nil)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(ProviderLLM, "boom", 3)
	}

	tracker.Probe(ProviderLLM)
	snap := tracker.Snapshot()
	if snap.Providers[ProviderLLM].State != CircuitHalfOpen {
		t.Fatalf("expected half_open after probe, got %s", snap.Providers[ProviderLLM].State)
	}
	if !tracker.IsHealthy(ProviderLLM) {
		t.Error("half-open circuit should allow the probe call")
	}

	// Success while half-open closes
	tracker.RecordSuccess(ProviderLLM)
	snap = tracker.Snapshot()
	if snap.Providers[ProviderLLM].State != CircuitClosed {
		t.Errorf("expected closed after half-open success, got %s", snap.Providers[ProviderLLM].State)
	}

	// Re-open, probe, and fail while half-open: back to open
	for i := 0; i < 3; i++ {
		tracker.RecordFailure(ProviderLLM, "boom", 3)
	}
	tracker.Probe(ProviderLLM)
	tracker.RecordFailure(ProviderLLM, "still broken", 3)
	snap = tracker.Snapshot()
	if snap.Providers[ProviderLLM].State != CircuitOpen {
		t.Errorf("expected open after half-open failure, got %s", snap.Providers[ProviderLLM].State)
	}
}

func TestTracker_ClassesAreIndependent(t *testing.T) {
	tracker := NewTracker(nil, nil)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(ProviderSearch, "dns", 3)
	}

	if tracker.IsHealthy(ProviderSearch) {
		t.Error("expected search to be unhealthy")
	}
	if !tracker.IsHealthy(ProviderLLM) {
		t.Error("search failures must not affect llm state")
	}
	snap := tracker.Snapshot()
	if got := snap.Providers[ProviderLLM].ConsecutiveFailures; got != 0 {
		t.Errorf("expected 0 llm failures, got %d", got)
	}
}

func TestTracker_PauseIsIdempotent(t *testing.T) {
	tracker := NewTracker(nil, nil)

	if !tracker.Pause("first reason") {
		t.Fatal("expected first pause to change state")
	}
	firstSnap := tracker.Snapshot()

	if tracker.Pause("second reason") {
		t.Error("expected second pause to be a no-op")
	}
	snap := tracker.Snapshot()
	if snap.PauseReason != "first reason" {
		t.Errorf("second pause overwrote reason: %q", snap.PauseReason)
	}
	if !snap.PausedAt.Equal(firstSnap.PausedAt) {
		t.Error("second pause overwrote the pause timestamp")
	}
}

func TestTracker_ResumeResetsAllCircuits(t *testing.T) {
	tracker := NewTracker(nil, nil)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(ProviderSearch, "down", 3)
		tracker.RecordFailure(ProviderLLM, "down", 3)
	}
	tracker.Pause("both providers down")

	if !tracker.Resume() {
		t.Fatal("expected resume to change state")
	}

	snap := tracker.Snapshot()
	if snap.SystemPaused {
		t.Error("expected system not paused after resume")
	}
	for class, p := range snap.Providers {
		if p.State != CircuitClosed {
			t.Errorf("%s: expected closed after resume, got %s", class, p.State)
		}
		if p.ConsecutiveFailures != 0 {
			t.Errorf("%s: expected failure count reset, got %d", class, p.ConsecutiveFailures)
		}
	}

	if tracker.Resume() {
		t.Error("expected resume while running to be a no-op")
	}
}

type recordingNotifier struct {
	paused  []string
	resumed int
}

func (n *recordingNotifier) SystemPaused(reason string, _ Snapshot) {
	n.paused = append(n.paused, reason)
}

func (n *recordingNotifier) SystemResumed(_ Snapshot) {
	n.resumed++
}

func TestTracker_NotifierReceivesTransitions(t *testing.T) {
	notifier := &recordingNotifier{}
	tracker := NewTracker(nil, notifier)

	tracker.Pause("maintenance")
	tracker.Pause("duplicate")
	tracker.Resume()

	if len(notifier.paused) != 1 || notifier.paused[0] != "maintenance" {
		t.Errorf("expected exactly one pause notification with original reason, got %v", notifier.paused)
	}
	if notifier.resumed != 1 {
		t.Errorf("expected 1 resume notification, got %d", notifier.resumed)
	}
}
