// Package aggregate combines per-claim verdicts into an article-level
// verdict and computes the quality-gate snapshot for a completed job.
package aggregate

import (
	"fmt"

	"github.com/arbiterhq/arbiter/internal/evidence"
	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/model"
)

// Input carries everything aggregation needs
type Input struct {
	Claims     []model.Claim
	Boundaries []model.Boundary
	Evidence   []model.EvidenceItem
	Verdicts   []model.ClaimVerdict
	Stats      evidence.Stats
}

// Output is the aggregate outcome
type Output struct {
	Article model.ArticleVerdict
	Gates   model.QualityGates
	Matrix  *model.CoverageMatrix
}

// BuildCoverageMatrix counts evidence per claim x boundary. Evidence
// under the unassigned sentinel is not attributed to any named
// boundary column.
func BuildCoverageMatrix(claims []model.Claim, boundaries []model.Boundary, items []model.EvidenceItem, verdicts []model.ClaimVerdict) (*model.CoverageMatrix, error) {
	matrix := model.NewCoverageMatrix(claims, boundaries)

	byEvidenceID := make(map[string]model.EvidenceItem, len(items))
	for _, item := range items {
		byEvidenceID[item.ID] = item
	}

	for _, verdict := range verdicts {
		ids := append(append([]string{}, verdict.SupportingEvidenceIDs...), verdict.ContradictingEvidenceIDs...)
		for _, id := range ids {
			item, ok := byEvidenceID[id]
			if !ok || item.BoundaryID == "" || item.BoundaryID == model.BoundaryUnassigned {
				continue
			}
			matrix.Record(verdict.ClaimID, item.BoundaryID)
		}
	}

	if err := matrix.Validate(); err != nil {
		return nil, fmt.Errorf("build coverage matrix: %w", err)
	}
	return matrix, nil
}

// Aggregate combines claim verdicts into the article verdict and
// computes the quality gates. Truth percentages entering the weighted
// mean use the defensive clamp: they are derived math over LLM output,
// so out-of-range values here mean noise, not broken producers.
func Aggregate(in Input) (*Output, error) {
	matrix, err := BuildCoverageMatrix(in.Claims, in.Boundaries, in.Evidence, in.Verdicts)
	if err != nil {
		return nil, err
	}

	centralByClaim := make(map[string]bool, len(in.Claims))
	for _, c := range in.Claims {
		centralByClaim[c.ID] = c.IsCentral
	}

	var weightedTruth, totalWeight, totalConfidence float64
	anyVerified := false
	for _, v := range in.Verdicts {
		weight := 1.0
		if centralByClaim[v.ClaimID] {
			weight = 2.0
		}
		weightedTruth += guard.ClampTruthPercentage(v.TruthPercentage) * weight
		totalWeight += weight
		totalConfidence += v.Confidence
		if len(v.SupportingEvidenceIDs) > 0 || len(v.ContradictingEvidenceIDs) > 0 {
			anyVerified = true
		}
	}

	article := model.ArticleVerdict{}
	if totalWeight > 0 {
		article.TruthPercentage = guard.ClampTruthPercentage(weightedTruth / totalWeight)
		article.Confidence = totalConfidence / float64(len(in.Verdicts))
	}
	article.Verdict = model.LabelForTruth(article.TruthPercentage, anyVerified)

	gates := computeGates(in, centralByClaim)
	article.Summary = fmt.Sprintf("%d claims analyzed across %d boundaries; %d evidence items from %d searches; quality gates %s",
		len(in.Claims), len(in.Boundaries), len(in.Evidence), in.Stats.SearchesPerformed, passedWord(gates.Passed))

	return &Output{Article: article, Gates: gates, Matrix: matrix}, nil
}

func computeGates(in Input, centralByClaim map[string]bool) model.QualityGates {
	distinctSources := make(map[string]bool)
	for _, item := range in.Evidence {
		distinctSources[item.SourceID] = true
	}

	gate1 := model.Gate1Stats{
		EvidenceItems:         len(in.Evidence),
		DistinctSources:       len(distinctSources),
		SearchesPerformed:     in.Stats.SearchesPerformed,
		ContradictionSearched: in.Stats.ContradictionSearched,
	}
	gate1.Passed = gate1.EvidenceItems >= 3 && gate1.DistinctSources >= 2 && gate1.ContradictionSearched

	gate4 := model.Gate4Stats{
		TierCounts: make(map[model.ConfidenceTier]int),
	}
	for _, v := range in.Verdicts {
		tier := model.TierForConfidence(v.Confidence)
		gate4.TierCounts[tier]++
		switch {
		case tier != model.TierLow:
			gate4.Publishable++
		case centralByClaim[v.ClaimID]:
			// Central claims stay publishable even at low confidence -
			// an explicit policy exception, tracked separately.
			gate4.Publishable++
			gate4.CentralKept++
		}
	}
	gate4.Passed = len(in.Verdicts) > 0 && gate4.Publishable*2 >= len(in.Verdicts)

	gates := model.QualityGates{
		Passed: gate1.Passed && gate4.Passed,
		Gate1:  gate1,
		Gate4:  gate4,
	}
	gates.Summary = fmt.Sprintf("gate1=%s gate4=%s (publishable=%d/%d, central kept=%d)",
		passedWord(gate1.Passed), passedWord(gate4.Passed), gate4.Publishable, len(in.Verdicts), gate4.CentralKept)
	return gates
}

func passedWord(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
