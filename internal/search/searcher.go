// Package search wraps the external evidence-search collaborator.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/health"
)

// Result is one search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher defines the interface for search providers
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// HTTPSearcher queries a JSON search endpoint
type HTTPSearcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSearcher creates a searcher against the configured endpoint
func NewHTTPSearcher(cfg config.SearchConfig) *HTTPSearcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSearcher{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Search performs one search request
func (s *HTTPSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}

	endpoint, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search base URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var payload struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return payload.Results, nil
}

// Gateway wraps a Searcher with rate limiting and circuit-breaker
// accounting against the search provider class.
type Gateway struct {
	searcher  Searcher
	tracker   *health.Tracker
	limiter   *rate.Limiter
	threshold int
	logger    *zap.Logger
}

// NewGateway builds a health-gated search gateway
func NewGateway(searcher Searcher, tracker *health.Tracker, perSecond float64, burst, threshold int, logger *zap.Logger) *Gateway {
	if perSecond <= 0 {
		perSecond = 4
	}
	if burst <= 0 {
		burst = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		searcher:  searcher,
		tracker:   tracker,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		threshold: threshold,
		logger:    logger,
	}
}

// Search runs one gated search call
func (g *Gateway) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if !g.tracker.IsHealthy(health.ProviderSearch) {
		return nil, fmt.Errorf("search circuit open")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	results, err := g.searcher.Search(ctx, query, limit)
	if err != nil {
		if opened := g.tracker.RecordFailure(health.ProviderSearch, err.Error(), g.threshold); opened {
			g.logger.Error("search circuit opened", zap.Error(err))
		}
		return nil, err
	}

	g.tracker.RecordSuccess(health.ProviderSearch)
	return results, nil
}
