// Package guard implements the deterministic consistency safeguards
// applied to verdicts produced from noisy LLM text: key-term grounding,
// the temporal/recency cap, and score-scale normalization.
package guard

import (
	"fmt"
	"math"
)

// NormalizeTrackRecordScore maps a source track-record score onto the
// canonical 0-1 scale. Values above 1 are treated as mistakenly
// expressed on a 0-100 scale and divided by 100. Non-finite inputs
// resolve to a neutral 0.5.
func NormalizeTrackRecordScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0.5
	}
	if score > 1 {
		score = score / 100
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ClampTruthPercentage defensively clamps a truth percentage to [0,100].
// Used where the input is derived math over LLM output and an
// out-of-range value just means accumulated noise.
func ClampTruthPercentage(truth float64) float64 {
	if math.IsNaN(truth) {
		return 0
	}
	if truth < 0 {
		return 0
	}
	if truth > 100 {
		return 100
	}
	return truth
}

// ValidateTruthPercentage is the fail-fast counterpart of
// ClampTruthPercentage, used at contract boundaries where an
// out-of-range value indicates a broken producer rather than noise.
func ValidateTruthPercentage(truth float64) error {
	if math.IsNaN(truth) || truth < 0 || truth > 100 {
		return fmt.Errorf("truth percentage out of range: %v", truth)
	}
	return nil
}
