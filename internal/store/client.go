// Package store talks to the authoritative job store: the job source
// and the status/result sink consumed by the harness.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/model"
)

// Client is an HTTP client for the job store
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *gocache.Cache
	logger  *zap.Logger
}

// NewClient creates a store client
func NewClient(cfg config.StoreConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		cache:   gocache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

// GetJob fetches a job from the job source. Results are briefly cached
// to absorb duplicate trigger bursts; status-changing writes below
// invalidate the entry.
func (c *Client) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if cached, found := c.cache.Get(id); found {
		job := cached.(model.Job)
		return &job, nil
	}

	var job model.Job
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/jobs/%s", id), nil, &job); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	c.cache.Set(id, job, gocache.DefaultExpiration)
	return &job, nil
}

// SetStatus reports a job state transition to the status sink
func (c *Client) SetStatus(ctx context.Context, id string, status model.JobStatus, progress int, level model.LogLevel, message string) error {
	c.cache.Delete(id)

	payload := map[string]any{
		"status":   status,
		"progress": progress,
		"level":    level,
		"message":  message,
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/internal/analysis/jobs/%s/status", id), payload, nil); err != nil {
		return fmt.Errorf("set status for job %s: %w", id, err)
	}
	return nil
}

// SetResult persists the terminal result payload
func (c *Client) SetResult(ctx context.Context, id string, result *model.AnalysisResult) error {
	c.cache.Delete(id)

	payload := map[string]any{"resultPayload": result}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/internal/analysis/jobs/%s/result", id), payload, nil); err != nil {
		return fmt.Errorf("set result for job %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if out != nil {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
