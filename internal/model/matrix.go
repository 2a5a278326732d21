package model

import "fmt"

// CoverageMatrix counts evidence per claim x boundary cell.
// Structural invariant: len(Counts) == len(ClaimIDs) and every row
// has len(BoundaryIDs) columns, checked on construction.
type CoverageMatrix struct {
	ClaimIDs    []string `json:"claim_ids"`
	BoundaryIDs []string `json:"boundary_ids"`
	Counts      [][]int  `json:"counts"`

	claimIndex    map[string]int
	boundaryIndex map[string]int
}

// NewCoverageMatrix builds an empty matrix over the given claims and boundaries
func NewCoverageMatrix(claims []Claim, boundaries []Boundary) *CoverageMatrix {
	m := &CoverageMatrix{
		ClaimIDs:      make([]string, len(claims)),
		BoundaryIDs:   make([]string, len(boundaries)),
		Counts:        make([][]int, len(claims)),
		claimIndex:    make(map[string]int, len(claims)),
		boundaryIndex: make(map[string]int, len(boundaries)),
	}

	for i, c := range claims {
		m.ClaimIDs[i] = c.ID
		m.claimIndex[c.ID] = i
		m.Counts[i] = make([]int, len(boundaries))
	}
	for j, b := range boundaries {
		m.BoundaryIDs[j] = b.ID
		m.boundaryIndex[b.ID] = j
	}

	return m
}

// Record increments the cell for the given claim/boundary pair.
// Unknown ids are ignored - evidence under the unassigned sentinel is
// not part of any named boundary column unless the sentinel itself is
// included as a boundary.
func (m *CoverageMatrix) Record(claimID, boundaryID string) {
	i, okClaim := m.claimIndex[claimID]
	j, okBoundary := m.boundaryIndex[boundaryID]
	if !okClaim || !okBoundary {
		return
	}
	m.Counts[i][j]++
}

// Count returns the cell value for the given claim/boundary pair
func (m *CoverageMatrix) Count(claimID, boundaryID string) int {
	i, okClaim := m.claimIndex[claimID]
	j, okBoundary := m.boundaryIndex[boundaryID]
	if !okClaim || !okBoundary {
		return 0
	}
	return m.Counts[i][j]
}

// Validate checks the structural invariant on dimensions
func (m *CoverageMatrix) Validate() error {
	if len(m.Counts) != len(m.ClaimIDs) {
		return fmt.Errorf("coverage matrix: %d rows for %d claims", len(m.Counts), len(m.ClaimIDs))
	}
	for i, row := range m.Counts {
		if len(row) != len(m.BoundaryIDs) {
			return fmt.Errorf("coverage matrix: row %d has %d columns for %d boundaries", i, len(row), len(m.BoundaryIDs))
		}
	}
	return nil
}
