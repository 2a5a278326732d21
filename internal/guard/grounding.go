package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/model"
)

// Completer is the minimal LLM capability the grounding check needs
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GroundingResult is the per-verdict grounding measurement
type GroundingResult struct {
	Ratio    float64 `json:"ratio"`
	Grounded int     `json:"grounded"`
	Total    int     `json:"total"`
}

// Grounder computes how well each verdict's reasoning is grounded in
// the evidence that verdict actually cites.
type Grounder struct {
	llm    Completer
	logger *zap.Logger
}

// NewGrounder creates a grounder. llm may be nil; the deterministic
// tokenizer is then used for every verdict.
func NewGrounder(llm Completer, logger *zap.Logger) *Grounder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grounder{llm: llm, logger: logger}
}

// GroundingRatios computes the grounding ratio for each verdict. Key
// terms come from a single batched LLM extraction when possible, with
// the deterministic tokenizer as fallback. Terms are matched only
// against evidence the verdict cites - supporting or contradicting -
// never against uncited items.
func (g *Grounder) GroundingRatios(ctx context.Context, verdicts []model.ClaimVerdict, evidence []model.EvidenceItem) map[string]GroundingResult {
	results := make(map[string]GroundingResult, len(verdicts))
	if len(verdicts) == 0 {
		return results
	}

	statements := make(map[string]string, len(evidence))
	for _, item := range evidence {
		statements[item.ID] = strings.ToLower(item.Statement)
	}

	terms := g.extractTerms(ctx, verdicts)

	for _, verdict := range verdicts {
		verdictTerms := terms[verdict.ClaimID]

		// Trivial reasoning is not penalized
		if len(verdictTerms) == 0 {
			results[verdict.ClaimID] = GroundingResult{Ratio: 1}
			continue
		}

		var cited strings.Builder
		for _, id := range verdict.SupportingEvidenceIDs {
			cited.WriteString(statements[id])
			cited.WriteString(" ")
		}
		for _, id := range verdict.ContradictingEvidenceIDs {
			cited.WriteString(statements[id])
			cited.WriteString(" ")
		}
		haystack := cited.String()

		grounded := 0
		for _, term := range verdictTerms {
			if strings.Contains(haystack, term) {
				grounded++
			}
		}

		results[verdict.ClaimID] = GroundingResult{
			Ratio:    float64(grounded) / float64(len(verdictTerms)),
			Grounded: grounded,
			Total:    len(verdictTerms),
		}
	}

	return results
}

// extractTerms returns key terms per claim id, batched through one LLM
// call, falling back to deterministic tokenization per verdict.
func (g *Grounder) extractTerms(ctx context.Context, verdicts []model.ClaimVerdict) map[string][]string {
	if g.llm != nil {
		if terms, err := g.extractTermsLLM(ctx, verdicts); err == nil {
			return terms
		} else {
			g.logger.Warn("LLM key-term extraction failed, using tokenizer fallback", zap.Error(err))
		}
	}

	terms := make(map[string][]string, len(verdicts))
	for _, verdict := range verdicts {
		terms[verdict.ClaimID] = FallbackKeyTerms(verdict.Reasoning)
	}
	return terms
}

func (g *Grounder) extractTermsLLM(ctx context.Context, verdicts []model.ClaimVerdict) (map[string][]string, error) {
	type entry struct {
		ID        string `json:"id"`
		Reasoning string `json:"reasoning"`
	}
	entries := make([]entry, len(verdicts))
	for i, v := range verdicts {
		entries[i] = entry{ID: v.ClaimID, Reasoning: v.Reasoning}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal reasoning batch: %w", err)
	}

	system := "You extract the factual key terms from verdict reasoning texts. " +
		"Respond with a JSON object mapping each id to an array of lowercase key terms. " +
		"Key terms are the concrete nouns, names, numbers and domain words the reasoning relies on. " +
		"No markdown, JSON only."

	raw, err := g.llm.Complete(ctx, system, string(payload))
	if err != nil {
		return nil, err
	}

	var parsed map[string][]string
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse key-term response: %w", err)
	}

	terms := make(map[string][]string, len(verdicts))
	for _, v := range verdicts {
		list, ok := parsed[v.ClaimID]
		if !ok {
			// Partial responses fall back per verdict, not per batch
			list = FallbackKeyTerms(v.Reasoning)
		}
		cleaned := make([]string, 0, len(list))
		seen := make(map[string]bool, len(list))
		for _, term := range list {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			cleaned = append(cleaned, term)
		}
		terms[v.ClaimID] = cleaned
	}
	return terms, nil
}

// stopWords are excluded from fallback tokenization
var stopWords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"from": true, "have": true, "has": true, "was": true, "were": true,
	"been": true, "are": true, "because": true, "which": true, "their": true,
	"there": true, "would": true, "could": true, "should": true, "about": true,
	"these": true, "those": true, "while": true, "where": true, "when": true,
	"evidence": true, "claim": true, "claims": true, "therefore": true,
	"however": true, "although": true, "based": true, "given": true,
	"according": true, "suggests": true, "indicates": true, "supported": true,
	"more": true, "most": true, "some": true, "such": true, "than": true,
	"then": true, "they": true, "them": true, "also": true, "only": true,
	"into": true, "over": true, "under": true, "does": true, "not": true,
}

// FallbackKeyTerms is the deterministic tokenizer used when the LLM
// extraction fails: lowercase words of at least 4 characters,
// deduplicated, stop-words excluded.
func FallbackKeyTerms(reasoning string) []string {
	fields := strings.FieldsFunc(strings.ToLower(reasoning), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	var terms []string
	seen := make(map[string]bool)
	for _, word := range fields {
		if len(word) < 4 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
	}
	return terms
}

// PenaltyResult reports the outcome of a grounding penalty application
type PenaltyResult struct {
	Applied            bool    `json:"applied"`
	Penalty            float64 `json:"penalty"`
	AdjustedConfidence float64 `json:"adjusted_confidence"`
}

// confidenceFloor is the minimum confidence any penalty can leave behind
const confidenceFloor = 5

// ApplyGroundingPenalty reduces confidence proportionally when the
// grounding ratio falls below the configured threshold. Pure function:
// no-op when disabled or at/above threshold, never drives confidence
// below the floor.
func ApplyGroundingPenalty(confidence, ratio float64, cfg config.GroundingConfig) PenaltyResult {
	if !cfg.Enabled || cfg.Threshold <= 0 || ratio >= cfg.Threshold {
		return PenaltyResult{Applied: false, AdjustedConfidence: confidence}
	}

	if ratio < 0 {
		ratio = 0
	}
	deficit := (cfg.Threshold - ratio) / cfg.Threshold
	adjusted := confidence - cfg.MaxPenalty*deficit
	if adjusted < confidenceFloor {
		adjusted = confidenceFloor
	}
	if adjusted > confidence {
		adjusted = confidence
	}

	return PenaltyResult{
		Applied:            adjusted < confidence,
		Penalty:            confidence - adjusted,
		AdjustedConfidence: adjusted,
	}
}
