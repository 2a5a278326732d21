package model

// EvidenceItem represents one extracted, graded piece of evidence.
// Produced by the extraction collaborator; consumed read-only here.
type EvidenceItem struct {
	ID             string         `json:"id"`
	Statement      string         `json:"statement"`
	SourceID       string         `json:"source_id"`
	BoundaryID     string         `json:"boundary_id,omitempty"` // Empty means BoundaryUnassigned
	ClaimDirection ClaimDirection `json:"claim_direction"`
	ProbativeValue ProbativeValue `json:"probative_value"`
}

// ClaimDirection is the closed set of ways evidence can bear on a claim
type ClaimDirection string

const (
	DirectionSupports    ClaimDirection = "supports"
	DirectionContradicts ClaimDirection = "contradicts"
	DirectionNeutral     ClaimDirection = "neutral"
)

// ProbativeValue grades how strongly an evidence item bears on its claim
type ProbativeValue string

const (
	ProbativeHigh   ProbativeValue = "high"
	ProbativeMedium ProbativeValue = "medium"
	ProbativeLow    ProbativeValue = "low"
)

// Source represents an evidence source with its reliability assessment
type Source struct {
	ID               string        `json:"id"`
	URL              string        `json:"url"`
	Host             string        `json:"host,omitempty"`
	Title            string        `json:"title,omitempty"`
	Authority        AuthorityTier `json:"authority"`
	TrackRecordScore float64       `json:"track_record_score"` // Always normalized to 0-1
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, aggregators
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
