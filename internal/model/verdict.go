package model

import "time"

// ClaimVerdict is the per-claim outcome of an analysis run.
// Invariant: TruthPercentage and Confidence are both within [0,100],
// enforced by explicit clamping or validation - never silent wraparound.
type ClaimVerdict struct {
	ClaimID                  string            `json:"claim_id"`
	TruthPercentage          float64           `json:"truth_percentage"` // 0-100
	Confidence               float64           `json:"confidence"`       // 0-100
	Verdict                  VerdictLabel      `json:"verdict"`
	Reasoning                string            `json:"reasoning"`
	SupportingEvidenceIDs    []string          `json:"supporting_evidence_ids"`
	ContradictingEvidenceIDs []string          `json:"contradicting_evidence_ids"`
	BoundaryFindings         []BoundaryFinding `json:"boundary_findings,omitempty"`
}

// BoundaryFinding records how a claim fares within one analytical frame
type BoundaryFinding struct {
	BoundaryID      string  `json:"boundary_id"`
	TruthPercentage float64 `json:"truth_percentage"`
	Note            string  `json:"note,omitempty"`
}

// VerdictLabel is the closed set of human-readable verdict bands
type VerdictLabel string

const (
	VerdictTrue        VerdictLabel = "true"
	VerdictMostlyTrue  VerdictLabel = "mostly_true"
	VerdictMixed       VerdictLabel = "mixed"
	VerdictMostlyFalse VerdictLabel = "mostly_false"
	VerdictFalse       VerdictLabel = "false"
	VerdictUnverified  VerdictLabel = "unverified"
)

// LabelForTruth maps a truth percentage onto its verdict band
func LabelForTruth(truth float64, verified bool) VerdictLabel {
	if !verified {
		return VerdictUnverified
	}
	switch {
	case truth >= 85:
		return VerdictTrue
	case truth >= 65:
		return VerdictMostlyTrue
	case truth >= 35:
		return VerdictMixed
	case truth >= 15:
		return VerdictMostlyFalse
	default:
		return VerdictFalse
	}
}

// ConfidenceTier buckets verdict confidence for gate accounting
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"   // >= 70
	TierMedium ConfidenceTier = "medium" // >= 40
	TierLow    ConfidenceTier = "low"    // < 40
)

// TierForConfidence maps a confidence value onto its tier
func TierForConfidence(confidence float64) ConfidenceTier {
	switch {
	case confidence >= 70:
		return TierHigh
	case confidence >= 40:
		return TierMedium
	default:
		return TierLow
	}
}

// ArticleVerdict is the aggregate verdict over the whole input
type ArticleVerdict struct {
	TruthPercentage float64      `json:"truth_percentage"` // 0-100
	Confidence      float64      `json:"confidence"`       // 0-100
	Verdict         VerdictLabel `json:"verdict"`
	Summary         string       `json:"summary"`
}

// ResultMetadata records how the run was executed
type ResultMetadata struct {
	PipelineVariant  PipelineVariant `json:"pipeline_variant"`
	PipelineFallback bool            `json:"pipeline_fallback"`
	FallbackReason   string          `json:"fallback_reason,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	DurationMs       int64           `json:"duration_ms"`
}

// AnalysisResult is the complete payload persisted through the result sink
type AnalysisResult struct {
	Article       ArticleVerdict `json:"article"`
	ClaimVerdicts []ClaimVerdict `json:"claim_verdicts"`
	Claims        []Claim        `json:"claims"`
	Boundaries    []Boundary     `json:"boundaries"`
	Evidence      []EvidenceItem `json:"evidence"`
	Sources       []Source       `json:"sources"`
	Gates         QualityGates   `json:"quality_gates"`
	Metadata      ResultMetadata `json:"metadata"`
}
