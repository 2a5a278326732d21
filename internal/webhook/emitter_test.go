package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/health"
)

func TestEmitter_PostsSignedEvent(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	emitter := NewEmitter(server.URL, "topsecret", 5*time.Second, nil)
	event := Event{
		Type:      EventSystemPaused,
		Reason:    "llm circuit open",
		Timestamp: time.Now().UTC(),
		HealthState: health.Snapshot{
			SystemPaused: true,
			PauseReason:  "llm circuit open",
		},
	}

	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal delivered body: %v", err)
	}
	if decoded.Type != EventSystemPaused {
		t.Errorf("expected type system_paused, got %s", decoded.Type)
	}
	if decoded.Reason != "llm circuit open" {
		t.Errorf("unexpected reason: %q", decoded.Reason)
	}

	if !strings.HasPrefix(gotSignature, "sha256=") {
		t.Fatalf("expected sha256= signature prefix, got %q", gotSignature)
	}
	want := Sign(gotBody, "topsecret")
	got := strings.TrimPrefix(gotSignature, "sha256=")
	wantMAC, _ := hex.DecodeString(want)
	gotMAC, _ := hex.DecodeString(got)
	if !hmac.Equal(wantMAC, gotMAC) {
		t.Error("signature does not verify against delivered body")
	}
}

func TestEmitter_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	emitter := NewEmitter(server.URL, "", 5*time.Second, nil)
	if err := emitter.Emit(context.Background(), Event{Type: EventSystemResumed}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if gotSignature != "" {
		t.Errorf("expected no signature header, got %q", gotSignature)
	}
}

func TestEmitter_DisabledWithoutURL(t *testing.T) {
	emitter := NewEmitter("", "secret", 5*time.Second, nil)
	if err := emitter.Emit(context.Background(), Event{Type: EventSystemPaused}); err != nil {
		t.Errorf("disabled emitter should drop events silently, got %v", err)
	}
}

func TestEmitter_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	emitter := NewEmitter(server.URL, "", 5*time.Second, nil)
	if err := emitter.Emit(context.Background(), Event{Type: EventSystemPaused}); err == nil {
		t.Error("expected error on 502 response")
	}
}
