// Package runner executes one analysis job through a selected pipeline
// variant. Variants are interchangeable strategies behind a common
// claim-to-verdict contract; the orchestrated variant is the canonical
// fallback when a monolithic variant throws.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/queue"
)

// Strategy is one pipeline variant. Analyze produces a complete result
// minus metadata, which the runner stamps.
type Strategy interface {
	Name() model.PipelineVariant
	Analyze(ctx context.Context, job *model.Job, report queue.ProgressFunc) (*model.AnalysisResult, error)
}

// ResultSink persists terminal results.
type ResultSink interface {
	SetResult(ctx context.Context, id string, result *model.AnalysisResult) error
}

// Runner dispatches a job to its requested variant and applies the
// single-fallback policy.
type Runner struct {
	strategies map[model.PipelineVariant]Strategy
	sink       ResultSink
	logger     *zap.Logger
}

// New creates a runner. The strategy set must include the orchestrated
// variant; it is both the default and the fallback.
func New(strategies []Strategy, sink ResultSink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[model.PipelineVariant]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	if _, ok := byName[model.VariantOrchestrated]; !ok {
		return nil, fmt.Errorf("runner: orchestrated strategy is required")
	}
	return &Runner{strategies: byName, sink: sink, logger: logger}, nil
}

// Execute satisfies queue.Executor.
func (r *Runner) Execute(ctx context.Context, job *model.Job, report queue.ProgressFunc) error {
	started := time.Now()

	variant := job.PipelineVariant
	strat, ok := r.strategies[variant]
	if !ok {
		// Never fail a job for an unrecognized variant.
		report(0, model.LevelWarn, fmt.Sprintf("unknown pipeline variant %q, using orchestrated", variant))
		variant = model.VariantOrchestrated
		strat = r.strategies[variant]
	}

	result, err := strat.Analyze(ctx, job, report)
	fellBack := false
	fallbackReason := ""
	if err != nil && variant != model.VariantOrchestrated {
		// One fallback attempt, only out of a monolithic variant.
		report(job.Progress, model.LevelWarn,
			fmt.Sprintf("pipeline variant %s failed, falling back to orchestrated: %v", variant, err))
		r.logger.Warn("pipeline fallback",
			zap.String("job_id", job.ID), zap.String("variant", string(variant)), zap.Error(err))
		fellBack = true
		fallbackReason = err.Error()
		variant = model.VariantOrchestrated
		result, err = r.strategies[variant].Analyze(ctx, job, report)
	}
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", variant, err)
	}

	if err := validateResult(result); err != nil {
		return fmt.Errorf("pipeline %s produced an invalid result: %w", variant, err)
	}

	result.Metadata = model.ResultMetadata{
		PipelineVariant:  variant,
		PipelineFallback: fellBack,
		FallbackReason:   fallbackReason,
		StartedAt:        started,
		DurationMs:       time.Since(started).Milliseconds(),
	}

	if err := r.sink.SetResult(ctx, job.ID, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	return nil
}

// validateResult is the fail-fast contract boundary: strategies must
// hand back truth percentages already on the 0-100 scale.
func validateResult(result *model.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("strategy returned no result")
	}
	if err := guard.ValidateTruthPercentage(result.Article.TruthPercentage); err != nil {
		return fmt.Errorf("article verdict: %w", err)
	}
	for _, v := range result.ClaimVerdicts {
		if err := guard.ValidateTruthPercentage(v.TruthPercentage); err != nil {
			return fmt.Errorf("claim %s: %w", v.ClaimID, err)
		}
	}
	return nil
}
