package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arbiterhq/arbiter/internal/model"
)

// StatusEvent is one recorded status transition
type StatusEvent struct {
	Status   model.JobStatus
	Progress int
	Level    model.LogLevel
	Message  string
}

// Memory is an in-process job store used by the one-shot run command
// and by tests. It records the full status history per job.
type Memory struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	history map[string][]StatusEvent
	results map[string]*model.AnalysisResult
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]*model.Job),
		history: make(map[string][]StatusEvent),
		results: make(map[string]*model.AnalysisResult),
	}
}

// Put inserts or replaces a job
func (m *Memory) Put(job model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &job
}

// GetJob returns a copy of the stored job
func (m *Memory) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

// SetStatus records a status transition
func (m *Memory) SetStatus(_ context.Context, id string, status model.JobStatus, progress int, level model.LogLevel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.Status = status
	job.Progress = progress
	m.history[id] = append(m.history[id], StatusEvent{
		Status:   status,
		Progress: progress,
		Level:    level,
		Message:  message,
	})
	return nil
}

// SetResult stores the terminal result payload
func (m *Memory) SetResult(_ context.Context, id string, result *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	m.results[id] = result
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	job.ResultPayload = payload
	return nil
}

// History returns the recorded status transitions for a job
func (m *Memory) History(id string) []StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusEvent, len(m.history[id]))
	copy(out, m.history[id])
	return out
}

// Result returns the stored result for a job, if any
func (m *Memory) Result(id string) *model.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[id]
}
