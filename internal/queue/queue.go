// Package queue implements the bounded-concurrency job queue that feeds
// analysis executions. Jobs are admitted by ID, held in FIFO order, and
// started only while a concurrency slot is free and the system is not
// paused. The queue is self-sustaining: every released slot re-drains,
// so no polling loop is needed.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/health"
	"github.com/arbiterhq/arbiter/internal/model"
)

// ProgressFunc reports intermediate progress for a running job.
type ProgressFunc func(progress int, level model.LogLevel, message string)

// Store is the authoritative job store the queue transitions jobs through.
type Store interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	SetStatus(ctx context.Context, id string, status model.JobStatus, progress int, level model.LogLevel, message string) error
	SetResult(ctx context.Context, id string, result *model.AnalysisResult) error
}

// Executor runs a single analysis job end to end.
type Executor interface {
	Execute(ctx context.Context, job *model.Job, report ProgressFunc) error
}

type pendingJob struct {
	id         string
	enqueuedAt time.Time
}

// Queue admits jobs by ID and executes them with bounded concurrency.
type Queue struct {
	store   Store
	exec    Executor
	tracker *health.Tracker
	logger  *zap.Logger

	maxConcurrency int
	timeout        time.Duration

	mu      sync.Mutex
	pending []pendingJob
	queued  map[string]bool
	active  map[string]bool

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New creates a queue. Executions inherit baseCtx, so cancelling it
// stops in-flight jobs during shutdown.
func New(baseCtx context.Context, store Store, exec Executor, tracker *health.Tracker, cfg config.QueueConfig, logger *zap.Logger) *Queue {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Queue{
		store:          store,
		exec:           exec,
		tracker:        tracker,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		timeout:        timeout,
		queued:         make(map[string]bool),
		active:         make(map[string]bool),
		baseCtx:        baseCtx,
	}
}

// Submit enqueues a job by ID and drains. Submitting a job that is
// already queued or running is a no-op; the return value reports
// whether the job was newly admitted.
func (q *Queue) Submit(jobID string) bool {
	q.mu.Lock()
	if q.queued[jobID] || q.active[jobID] {
		q.mu.Unlock()
		return false
	}
	q.queued[jobID] = true
	q.pending = append(q.pending, pendingJob{id: jobID, enqueuedAt: time.Now()})
	q.mu.Unlock()

	q.Drain()
	return true
}

// Depth returns the number of jobs waiting and the number running.
func (q *Queue) Depth() (waiting, running int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.active)
}

// Drain evicts stale entries, then starts queued jobs until either the
// queue is empty or every concurrency slot is taken. Safe to call from
// any goroutine at any time; it is invoked on submit, on every slot
// release, and on system resume.
func (q *Queue) Drain() {
	now := time.Now()

	q.mu.Lock()
	var stale []string
	kept := q.pending[:0]
	for _, p := range q.pending {
		if now.Sub(p.enqueuedAt) > q.timeout {
			delete(q.queued, p.id)
			stale = append(stale, p.id)
			continue
		}
		kept = append(kept, p)
	}
	q.pending = kept

	var starts []string
	if !q.tracker.Paused() {
		for len(q.active) < q.maxConcurrency && len(q.pending) > 0 {
			head := q.pending[0]
			q.pending = q.pending[1:]
			delete(q.queued, head.id)
			// Reserve the slot before the store double-check; the
			// launch goroutine releases it if the job is skipped.
			q.active[head.id] = true
			starts = append(starts, head.id)
		}
	}
	q.mu.Unlock()

	for _, id := range stale {
		q.evict(id)
	}
	for _, id := range starts {
		q.launch(id)
	}
}

// Wait blocks until all in-flight executions finish.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) evict(jobID string) {
	q.logger.Warn("evicting stale job", zap.String("job_id", jobID), zap.Duration("timeout", q.timeout))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.store.SetStatus(ctx, jobID, model.JobFailed, 0, model.LevelError, "queue timeout: job waited too long for a free slot"); err != nil {
		q.logger.Error("failed to mark evicted job", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (q *Queue) launch(jobID string) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.release(jobID)
		q.run(jobID)
	}()
}

func (q *Queue) release(jobID string) {
	q.mu.Lock()
	delete(q.active, jobID)
	q.mu.Unlock()
	q.Drain()
}

func (q *Queue) run(jobID string) {
	ctx := q.baseCtx

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		q.logger.Error("failed to load job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	// Double-check against the authoritative store: another instance
	// may have picked the job up, or a duplicate trigger may have
	// arrived after completion.
	if job.Status == model.JobRunning || job.Status == model.JobSucceeded {
		q.logger.Info("skipping job in terminal or running state",
			zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return
	}

	if err := q.store.SetStatus(ctx, jobID, model.JobRunning, 0, model.LevelInfo, "analysis started"); err != nil {
		q.logger.Error("failed to mark job running", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	report := func(progress int, level model.LogLevel, message string) {
		if err := q.store.SetStatus(ctx, jobID, model.JobRunning, progress, level, message); err != nil {
			q.logger.Warn("failed to report progress", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	if err := q.exec.Execute(ctx, job, report); err != nil {
		q.logger.Error("job failed", zap.String("job_id", jobID), zap.Error(err))
		if serr := q.store.SetStatus(ctx, jobID, model.JobFailed, 100, model.LevelError, err.Error()); serr != nil {
			q.logger.Error("failed to mark job failed", zap.String("job_id", jobID), zap.Error(serr))
		}
		return
	}

	if err := q.store.SetStatus(ctx, jobID, model.JobSucceeded, 100, model.LevelInfo, "analysis complete"); err != nil {
		q.logger.Error("failed to mark job succeeded", zap.String("job_id", jobID), zap.Error(err))
	}
}
