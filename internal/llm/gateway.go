package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arbiterhq/arbiter/internal/health"
)

// ErrCircuitOpen is returned when the llm circuit refuses the call
var ErrCircuitOpen = fmt.Errorf("llm circuit open")

// Gateway wraps a Provider with rate limiting, transient retries and
// circuit-breaker accounting. Every call through the gateway is
// recorded against the llm provider class.
type Gateway struct {
	provider  Provider
	tracker   *health.Tracker
	limiter   *rate.Limiter
	threshold int
	attempts  int
	logger    *zap.Logger
}

// NewGateway builds a gateway around the given provider
func NewGateway(provider Provider, tracker *health.Tracker, perSecond float64, burst, threshold int, logger *zap.Logger) *Gateway {
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		provider:  provider,
		tracker:   tracker,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		threshold: threshold,
		attempts:  2,
		logger:    logger,
	}
}

// Complete runs one completion through the health-gated provider.
// Transient failures are retried within a small fixed budget; only an
// exhausted budget surfaces as a circuit-breaker failure record.
func (g *Gateway) Complete(ctx context.Context, system, user string) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("llm provider not configured")
	}
	if !g.tracker.IsHealthy(health.ProviderLLM) {
		return "", ErrCircuitOpen
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		out, err := g.provider.Complete(ctx, system, user)
		if err == nil {
			g.tracker.RecordSuccess(health.ProviderLLM)
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.logger.Debug("llm attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if opened := g.tracker.RecordFailure(health.ProviderLLM, lastErr.Error(), g.threshold); opened {
		g.logger.Error("llm circuit opened", zap.Error(lastErr))
	}
	return "", fmt.Errorf("llm call: %w", lastErr)
}
