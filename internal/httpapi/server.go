// Package httpapi exposes the harness control surface: provider-health
// inspection and pause/resume, plus the admin trigger that admits jobs
// into the queue. Every endpoint is async with respect to analysis:
// nothing here blocks on a running job.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/health"
)

// Queue is the admission surface the API needs.
type Queue interface {
	Submit(jobID string) bool
	Drain()
}

// Server handles the internal control endpoints.
type Server struct {
	tracker *health.Tracker
	queue   Queue
	cfg     config.ServerConfig
	logger  *zap.Logger
}

// NewServer creates the control-surface handler set.
func NewServer(tracker *health.Tracker, queue Queue, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{tracker: tracker, queue: queue, cfg: cfg, logger: logger}
}

// Handler returns the routed handler, auth applied to every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/provider-health", s.withAuth(s.handleProviderHealth))
	mux.HandleFunc("/internal/run-job", s.withAuth(s.handleRunJob))
	return mux
}

// withAuth enforces the shared-token check. A missing token in
// production is a configuration failure: fail fast with 503 rather
// than serve unauthenticated.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			if s.cfg.Environment == "production" {
				s.logger.Error("auth token not configured in production")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "auth token not configured"})
				return
			}
			next(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AuthToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.tracker.Snapshot())
	case http.MethodPost:
		s.handleHealthAction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleHealthAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Action {
	case "pause":
		reason := req.Reason
		if reason == "" {
			reason = "manual pause"
		}
		s.tracker.Pause(reason)
	case "resume":
		s.tracker.Resume()
		// Jobs may have queued up while paused.
		s.queue.Drain()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be pause or resume"})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	admitted := s.queue.Submit(req.JobID)
	if !admitted {
		s.logger.Info("duplicate trigger ignored", zap.String("job_id", req.JobID))
	}
	// Always async-ack: the trigger never waits for the analysis.
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "jobId": req.JobID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
