package guard

import (
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/model"
)

// RecencyCorrection records one verdict capped by the temporal guard
type RecencyCorrection struct {
	ClaimID       string  `json:"claim_id"`
	OriginalTruth float64 `json:"original_truth"`
	CappedTruth   float64 `json:"capped_truth"`
}

// ApplyRecencyGuard caps uncited high-truth verdicts when the input is
// recency-sensitive. A verdict at or above the high-truth threshold
// with no supporting evidence ids is pulled down to the unverified
// ceiling and its confidence floored; verdicts that cite supporting
// evidence are left untouched regardless of magnitude. When the input
// is not recency-sensitive the guard is an unconditional no-op.
func ApplyRecencyGuard(verdicts []model.ClaimVerdict, recencySensitive bool, cfg config.RecencyConfig) ([]model.ClaimVerdict, []RecencyCorrection) {
	if !recencySensitive {
		return verdicts, nil
	}

	out := make([]model.ClaimVerdict, len(verdicts))
	copy(out, verdicts)

	var corrections []RecencyCorrection
	for i, v := range out {
		if v.TruthPercentage < cfg.HighTruthThreshold || len(v.SupportingEvidenceIDs) > 0 {
			continue
		}

		corrections = append(corrections, RecencyCorrection{
			ClaimID:       v.ClaimID,
			OriginalTruth: v.TruthPercentage,
			CappedTruth:   cfg.UnverifiedCeiling,
		})

		out[i].TruthPercentage = cfg.UnverifiedCeiling
		if out[i].Confidence > cfg.ConfidenceFloor {
			out[i].Confidence = cfg.ConfidenceFloor
		}
		out[i].Verdict = model.VerdictUnverified
	}

	return out, corrections
}
