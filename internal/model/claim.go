package model

// Claim represents an atomic proposition extracted from the input.
// Claims are immutable once emitted by decomposition.
type Claim struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	IsCentral  bool          `json:"is_central"`            // High-importance claim marked during decomposition
	Category   ClaimCategory `json:"category"`
	BoundaryID string        `json:"boundary_id,omitempty"` // Empty means BoundaryUnassigned
}

// ClaimCategory categorizes the nature of the claim
type ClaimCategory string

const (
	CategoryFactual     ClaimCategory = "factual"     // Verifiable statement of fact
	CategoryStatistical ClaimCategory = "statistical" // Numeric or measurement claim
	CategoryCausal      ClaimCategory = "causal"      // Cause-effect assertion
	CategoryPredictive  ClaimCategory = "predictive"  // Claim about future events
	CategoryOpinion     ClaimCategory = "opinion"     // Value judgement, not verifiable
)

// BoundaryUnassigned is the reserved sentinel id for claims and evidence
// that could not be confidently placed under a named boundary. Ambiguous
// items land here; they are never silently merged into a named boundary.
const BoundaryUnassigned = "ctx_unassigned"

// Boundary represents a distinct analytical frame (jurisdiction,
// methodology, time window) under which claims and evidence must be
// kept separate.
type Boundary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	ShortName         string   `json:"short_name"`
	ConstituentScopes []string `json:"constituent_scopes,omitempty"`
	InternalCoherence float64  `json:"internal_coherence"` // 0-1
}

// UnassignedBoundary returns the sentinel boundary for ambiguous items
func UnassignedBoundary() Boundary {
	return Boundary{
		ID:        BoundaryUnassigned,
		Name:      "Unassigned",
		ShortName: "unassigned",
	}
}
