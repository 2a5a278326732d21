package model

// QualityGates is the aggregate pass/fail snapshot for a completed job.
// Computed once per job, immutable thereafter.
type QualityGates struct {
	Passed  bool       `json:"passed"`
	Gate1   Gate1Stats `json:"gate1_stats"`
	Gate4   Gate4Stats `json:"gate4_stats"`
	Summary string     `json:"summary"`
}

// Gate1Stats measures evidence sufficiency
type Gate1Stats struct {
	EvidenceItems         int  `json:"evidence_items"`
	DistinctSources       int  `json:"distinct_sources"`
	SearchesPerformed     int  `json:"searches_performed"`
	ContradictionSearched bool `json:"contradiction_searched"`
	Passed                bool `json:"passed"`
}

// Gate4Stats measures verdict publishability by confidence tier.
// CentralKept counts central claims retained in the publishable set
// despite a low confidence tier - an explicit policy exception.
type Gate4Stats struct {
	Publishable int                    `json:"publishable"`
	CentralKept int                    `json:"central_kept"`
	TierCounts  map[ConfidenceTier]int `json:"tier_counts"`
	Passed      bool                   `json:"passed"`
}
