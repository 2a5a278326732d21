package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/aggregate"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/evidence"
	"github.com/arbiterhq/arbiter/internal/fetch"
	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/queue"
	"github.com/arbiterhq/arbiter/internal/understand"
)

// Completer is the LLM collaborator surface the strategies need.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Orchestrated is the canonical multi-stage pipeline: normalize,
// decompose, gather evidence, synthesize verdicts, apply consistency
// guards, aggregate.
type Orchestrated struct {
	fetcher    *fetch.Fetcher
	decomposer *understand.Decomposer
	gatherer   *evidence.Gatherer
	grounder   *guard.Grounder
	llm        Completer
	cfg        config.Config
	logger     *zap.Logger
}

// NewOrchestrated creates the orchestrated strategy. fetcher may be nil
// when URL inputs are not expected.
func NewOrchestrated(fetcher *fetch.Fetcher, decomposer *understand.Decomposer, gatherer *evidence.Gatherer, grounder *guard.Grounder, llm Completer, cfg config.Config, logger *zap.Logger) *Orchestrated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrated{
		fetcher:    fetcher,
		decomposer: decomposer,
		gatherer:   gatherer,
		grounder:   grounder,
		llm:        llm,
		cfg:        cfg,
		logger:     logger,
	}
}

// Name implements Strategy.
func (o *Orchestrated) Name() model.PipelineVariant { return model.VariantOrchestrated }

// Analyze implements Strategy.
func (o *Orchestrated) Analyze(ctx context.Context, job *model.Job, report queue.ProgressFunc) (*model.AnalysisResult, error) {
	text, err := inputText(ctx, o.fetcher, job)
	if err != nil {
		return nil, err
	}
	report(10, model.LevelInfo, "input prepared")

	normalized := understand.NormalizeQuestion(text, o.cfg.Understand)
	dec, err := o.decomposer.Decompose(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	report(30, model.LevelInfo, fmt.Sprintf("decomposed into %d claims, %d boundaries", len(dec.Claims), len(dec.Boundaries)))

	items, srcs, stats, err := o.gatherer.Gather(ctx, dec.Claims, dec.Boundaries)
	if err != nil {
		return nil, fmt.Errorf("gather evidence: %w", err)
	}
	report(55, model.LevelInfo, fmt.Sprintf("gathered %d evidence items from %d sources", len(items), len(srcs)))

	verdicts, err := o.synthesize(ctx, dec.Claims, dec.Boundaries, items)
	if err != nil {
		return nil, fmt.Errorf("synthesize verdicts: %w", err)
	}
	report(75, model.LevelInfo, "verdicts synthesized")

	verdicts = o.applyGuards(ctx, verdicts, items, dec.RecencySensitive, report)

	agg, err := aggregate.Aggregate(aggregate.Input{
		Claims:     dec.Claims,
		Boundaries: dec.Boundaries,
		Evidence:   items,
		Verdicts:   verdicts,
		Stats:      stats,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	report(90, model.LevelInfo, "verdict aggregated")

	return &model.AnalysisResult{
		Article:       agg.Article,
		ClaimVerdicts: verdicts,
		Claims:        dec.Claims,
		Boundaries:    dec.Boundaries,
		Evidence:      items,
		Sources:       srcs,
		Gates:         agg.Gates,
	}, nil
}

// inputText resolves the job input to analyzable text, fetching and
// extracting when the input is a URL.
func inputText(ctx context.Context, fetcher *fetch.Fetcher, job *model.Job) (string, error) {
	switch job.InputType {
	case model.InputURL:
		if fetcher == nil {
			return "", fmt.Errorf("url input %q: no fetcher configured", job.InputValue)
		}
		page, err := fetcher.Fetch(ctx, job.InputValue)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", job.InputValue, err)
		}
		return page.Text, nil
	default:
		return job.InputValue, nil
	}
}

// applyGuards runs the grounding penalty and the recency guard over the
// synthesized verdicts, then re-labels each verdict from its corrected
// numbers.
func (o *Orchestrated) applyGuards(ctx context.Context, verdicts []model.ClaimVerdict, items []model.EvidenceItem, recencySensitive bool, report queue.ProgressFunc) []model.ClaimVerdict {
	if o.grounder != nil && o.cfg.Guards.Grounding.Enabled {
		ratios := o.grounder.GroundingRatios(ctx, verdicts, items)
		for i := range verdicts {
			res, ok := ratios[verdicts[i].ClaimID]
			if !ok {
				continue
			}
			penalty := guard.ApplyGroundingPenalty(verdicts[i].Confidence, res.Ratio, o.cfg.Guards.Grounding)
			if penalty.Applied {
				o.logger.Debug("grounding penalty",
					zap.String("claim_id", verdicts[i].ClaimID),
					zap.Float64("ratio", res.Ratio),
					zap.Float64("penalty", penalty.Penalty))
			}
			verdicts[i].Confidence = penalty.AdjustedConfidence
		}
	}

	guarded, corrections := guard.ApplyRecencyGuard(verdicts, recencySensitive, o.cfg.Guards.Recency)
	for _, c := range corrections {
		report(80, model.LevelWarn, fmt.Sprintf("recency guard capped claim %s to unverified", c.ClaimID))
	}

	for i := range guarded {
		if guarded[i].Verdict == model.VerdictUnverified {
			continue
		}
		verified := len(guarded[i].SupportingEvidenceIDs)+len(guarded[i].ContradictingEvidenceIDs) > 0
		guarded[i].Verdict = model.LabelForTruth(guarded[i].TruthPercentage, verified)
	}
	return guarded
}

const synthesizeSystemPrompt = `You are a fact-verification analyst. You receive claims and graded evidence items as JSON. For every claim, weigh the evidence that bears on it and respond with a JSON array only, one object per claim:
[{"claim_id": "...", "truth_percentage": 0-100, "confidence": 0-100, "reasoning": "...", "supporting_evidence_ids": ["..."], "contradicting_evidence_ids": ["..."], "boundary_findings": [{"boundary_id": "...", "truth_percentage": 0-100, "note": "..."}]}]
Cite only evidence ids that exist in the input. Leave the id arrays empty when nothing bears on the claim rather than inventing citations. Reference only the claim in your reasoning, grounded in cited evidence.`

func (o *Orchestrated) synthesize(ctx context.Context, claims []model.Claim, boundaries []model.Boundary, items []model.EvidenceItem) ([]model.ClaimVerdict, error) {
	type claimIn struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		IsCentral bool   `json:"is_central"`
	}
	type evidenceIn struct {
		ID        string `json:"id"`
		Statement string `json:"statement"`
		Direction string `json:"direction"`
		Probative string `json:"probative"`
		Boundary  string `json:"boundary,omitempty"`
	}
	type boundaryIn struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	payload := struct {
		Claims     []claimIn    `json:"claims"`
		Boundaries []boundaryIn `json:"boundaries"`
		Evidence   []evidenceIn `json:"evidence"`
	}{}
	for _, c := range claims {
		payload.Claims = append(payload.Claims, claimIn{ID: c.ID, Text: c.Text, IsCentral: c.IsCentral})
	}
	for _, b := range boundaries {
		payload.Boundaries = append(payload.Boundaries, boundaryIn{ID: b.ID, Name: b.Name})
	}
	for _, e := range items {
		payload.Evidence = append(payload.Evidence, evidenceIn{
			ID:        e.ID,
			Statement: e.Statement,
			Direction: string(e.ClaimDirection),
			Probative: string(e.ProbativeValue),
			Boundary:  e.BoundaryID,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	raw, err := o.llm.Complete(ctx, synthesizeSystemPrompt, string(body))
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		ClaimID                  string                  `json:"claim_id"`
		TruthPercentage          float64                 `json:"truth_percentage"`
		Confidence               float64                 `json:"confidence"`
		Reasoning                string                  `json:"reasoning"`
		SupportingEvidenceIDs    []string                `json:"supporting_evidence_ids"`
		ContradictingEvidenceIDs []string                `json:"contradicting_evidence_ids"`
		BoundaryFindings         []model.BoundaryFinding `json:"boundary_findings"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse synthesis response: %w", err)
	}

	knownClaims := make(map[string]bool, len(claims))
	for _, c := range claims {
		knownClaims[c.ID] = true
	}
	knownEvidence := make(map[string]bool, len(items))
	for _, e := range items {
		knownEvidence[e.ID] = true
	}

	var verdicts []model.ClaimVerdict
	for _, p := range parsed {
		if !knownClaims[p.ClaimID] {
			continue
		}
		verified := false
		supporting := filterKnown(p.SupportingEvidenceIDs, knownEvidence)
		contradicting := filterKnown(p.ContradictingEvidenceIDs, knownEvidence)
		if len(supporting)+len(contradicting) > 0 {
			verified = true
		}
		truth := guard.ClampTruthPercentage(p.TruthPercentage)
		verdicts = append(verdicts, model.ClaimVerdict{
			ClaimID:                  p.ClaimID,
			TruthPercentage:          truth,
			Confidence:               clampPercent(p.Confidence),
			Verdict:                  model.LabelForTruth(truth, verified),
			Reasoning:                p.Reasoning,
			SupportingEvidenceIDs:    supporting,
			ContradictingEvidenceIDs: contradicting,
			BoundaryFindings:         p.BoundaryFindings,
		})
	}
	if len(verdicts) == 0 {
		return nil, fmt.Errorf("synthesis produced no verdicts for %d claims", len(claims))
	}
	return verdicts, nil
}

func filterKnown(ids []string, known map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

