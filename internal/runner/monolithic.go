package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/fetch"
	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/queue"
	"github.com/arbiterhq/arbiter/internal/understand"
)

// Monolithic runs the whole analysis in a single LLM call. Two prompt
// styles share the parse path: the canonical variant uses a fixed
// template, the dynamic variant assembles its instructions from the
// traits of the input. Either way the output contract is the same JSON
// document, validated fail-fast so that a malformed completion
// surfaces as a strategy error and triggers the orchestrated fallback.
type Monolithic struct {
	variant model.PipelineVariant
	fetcher *fetch.Fetcher
	llm     Completer
	logger  *zap.Logger
}

// NewMonolithicCanonical creates the fixed-template single-call strategy.
func NewMonolithicCanonical(fetcher *fetch.Fetcher, llm Completer, logger *zap.Logger) *Monolithic {
	return newMonolithic(model.VariantMonolithicCanonical, fetcher, llm, logger)
}

// NewMonolithicDynamic creates the input-adaptive single-call strategy.
func NewMonolithicDynamic(fetcher *fetch.Fetcher, llm Completer, logger *zap.Logger) *Monolithic {
	return newMonolithic(model.VariantMonolithicDynamic, fetcher, llm, logger)
}

func newMonolithic(variant model.PipelineVariant, fetcher *fetch.Fetcher, llm Completer, logger *zap.Logger) *Monolithic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monolithic{variant: variant, fetcher: fetcher, llm: llm, logger: logger}
}

// Name implements Strategy.
func (m *Monolithic) Name() model.PipelineVariant { return m.variant }

const monolithicContract = `Respond with a single JSON object only:
{"article": {"truth_percentage": 0-100, "confidence": 0-100, "summary": "..."},
 "claims": [{"id": "c1", "text": "...", "is_central": true|false}],
 "claim_verdicts": [{"claim_id": "c1", "truth_percentage": 0-100, "confidence": 0-100, "reasoning": "..."}]}
Every claim must have exactly one verdict. Truth percentages are on the 0-100 scale.`

const canonicalSystemPrompt = `You are a fact-verification analyst. Decompose the input into its atomic factual claims, judge each claim from your knowledge, and produce an overall article verdict.
` + monolithicContract

// Analyze implements Strategy.
func (m *Monolithic) Analyze(ctx context.Context, job *model.Job, report queue.ProgressFunc) (*model.AnalysisResult, error) {
	text, err := inputText(ctx, m.fetcher, job)
	if err != nil {
		return nil, err
	}
	report(10, model.LevelInfo, "input prepared")

	system := canonicalSystemPrompt
	if m.variant == model.VariantMonolithicDynamic {
		system = dynamicSystemPrompt(text)
	}

	raw, err := m.llm.Complete(ctx, system, text)
	if err != nil {
		return nil, fmt.Errorf("monolithic completion: %w", err)
	}
	report(70, model.LevelInfo, "completion received")

	result, err := parseMonolithic(raw)
	if err != nil {
		return nil, err
	}
	report(90, model.LevelInfo, "completion parsed")
	return result, nil
}

// dynamicSystemPrompt tailors the instruction block to the input:
// recency-sensitive inputs get an explicit staleness warning, short
// inputs skip decomposition guidance they cannot use.
func dynamicSystemPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are a fact-verification analyst. ")
	if len(strings.Fields(text)) < 30 {
		b.WriteString("The input is a single statement; treat it as one central claim. ")
	} else {
		b.WriteString("Decompose the input into atomic factual claims, marking load-bearing ones as central. ")
	}
	if understand.DetectRecencySensitivity(text) {
		b.WriteString("The input concerns current or recent events; where your knowledge may be stale, lower confidence rather than guessing. ")
	}
	b.WriteString("Judge each claim and produce an overall article verdict.\n")
	b.WriteString(monolithicContract)
	return b.String()
}

func parseMonolithic(raw string) (*model.AnalysisResult, error) {
	var parsed struct {
		Article struct {
			TruthPercentage float64 `json:"truth_percentage"`
			Confidence      float64 `json:"confidence"`
			Summary         string  `json:"summary"`
		} `json:"article"`
		Claims []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			IsCentral bool   `json:"is_central"`
		} `json:"claims"`
		ClaimVerdicts []struct {
			ClaimID         string  `json:"claim_id"`
			TruthPercentage float64 `json:"truth_percentage"`
			Confidence      float64 `json:"confidence"`
			Reasoning       string  `json:"reasoning"`
		} `json:"claim_verdicts"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse monolithic response: %w", err)
	}
	if len(parsed.Claims) == 0 || len(parsed.ClaimVerdicts) == 0 {
		return nil, fmt.Errorf("monolithic response has no claims or verdicts")
	}
	if err := guard.ValidateTruthPercentage(parsed.Article.TruthPercentage); err != nil {
		return nil, fmt.Errorf("monolithic article verdict: %w", err)
	}

	claims := make([]model.Claim, 0, len(parsed.Claims))
	for _, c := range parsed.Claims {
		claims = append(claims, model.Claim{ID: c.ID, Text: c.Text, IsCentral: c.IsCentral, Category: model.CategoryFactual})
	}

	verdicts := make([]model.ClaimVerdict, 0, len(parsed.ClaimVerdicts))
	for _, v := range parsed.ClaimVerdicts {
		if err := guard.ValidateTruthPercentage(v.TruthPercentage); err != nil {
			return nil, fmt.Errorf("monolithic verdict for %s: %w", v.ClaimID, err)
		}
		// No retrieval happened, so verdicts carry no citations.
		// Labels still band on truth: a knowledge-based judgment is
		// a judgment, not an unverified placeholder.
		verdicts = append(verdicts, model.ClaimVerdict{
			ClaimID:         v.ClaimID,
			TruthPercentage: v.TruthPercentage,
			Confidence:      clampPercent(v.Confidence),
			Verdict:         model.LabelForTruth(v.TruthPercentage, true),
			Reasoning:       v.Reasoning,
		})
	}

	return &model.AnalysisResult{
		Article: model.ArticleVerdict{
			TruthPercentage: parsed.Article.TruthPercentage,
			Confidence:      clampPercent(parsed.Article.Confidence),
			Verdict:         model.LabelForTruth(parsed.Article.TruthPercentage, true),
			Summary:         parsed.Article.Summary,
		},
		ClaimVerdicts: verdicts,
		Claims:        claims,
		Gates: model.QualityGates{
			Passed:  false,
			Summary: "monolithic pipeline: no evidence retrieval, gates not evaluated",
		},
	}, nil
}
