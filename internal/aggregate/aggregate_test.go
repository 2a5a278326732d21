package aggregate

import (
	"testing"

	"github.com/arbiterhq/arbiter/internal/evidence"
	"github.com/arbiterhq/arbiter/internal/model"
)

func testInput() Input {
	claims := []model.Claim{
		{ID: "c1", Text: "claim one", IsCentral: true},
		{ID: "c2", Text: "claim two"},
		{ID: "c3", Text: "claim three"},
	}
	boundaries := []model.Boundary{
		{ID: "b1", Name: "EU frame", ShortName: "eu"},
		{ID: "b2", Name: "US frame", ShortName: "us"},
	}
	items := []model.EvidenceItem{
		{ID: "e1", Statement: "supports c1", SourceID: "s1", BoundaryID: "b1", ClaimDirection: model.DirectionSupports, ProbativeValue: model.ProbativeHigh},
		{ID: "e2", Statement: "contradicts c2", SourceID: "s2", BoundaryID: "b2", ClaimDirection: model.DirectionContradicts, ProbativeValue: model.ProbativeMedium},
		{ID: "e3", Statement: "ambiguous", SourceID: "s1", BoundaryID: model.BoundaryUnassigned, ClaimDirection: model.DirectionNeutral, ProbativeValue: model.ProbativeLow},
	}
	verdicts := []model.ClaimVerdict{
		{ClaimID: "c1", TruthPercentage: 90, Confidence: 80, SupportingEvidenceIDs: []string{"e1"}},
		{ClaimID: "c2", TruthPercentage: 30, Confidence: 60, ContradictingEvidenceIDs: []string{"e2"}},
		{ClaimID: "c3", TruthPercentage: 50, Confidence: 20},
	}
	return Input{
		Claims:     claims,
		Boundaries: boundaries,
		Evidence:   items,
		Verdicts:   verdicts,
		Stats:      evidence.Stats{SearchesPerformed: 6, ContradictionSearched: true},
	}
}

func TestBuildCoverageMatrix_Dimensions(t *testing.T) {
	in := testInput()
	matrix, err := BuildCoverageMatrix(in.Claims, in.Boundaries, in.Evidence, in.Verdicts)
	if err != nil {
		t.Fatalf("build matrix: %v", err)
	}

	if len(matrix.Counts) != len(in.Claims) {
		t.Errorf("expected %d rows, got %d", len(in.Claims), len(matrix.Counts))
	}
	for i, row := range matrix.Counts {
		if len(row) != len(in.Boundaries) {
			t.Errorf("row %d: expected %d columns, got %d", i, len(in.Boundaries), len(row))
		}
	}

	if got := matrix.Count("c1", "b1"); got != 1 {
		t.Errorf("expected c1/b1 count 1, got %d", got)
	}
	if got := matrix.Count("c2", "b2"); got != 1 {
		t.Errorf("expected c2/b2 count 1, got %d", got)
	}
}

func TestBuildCoverageMatrix_EmptyDimensions(t *testing.T) {
	matrix, err := BuildCoverageMatrix(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("build empty matrix: %v", err)
	}
	if len(matrix.Counts) != 0 || len(matrix.ClaimIDs) != 0 {
		t.Error("expected zero-dimension matrix for empty inputs")
	}
}

func TestBuildCoverageMatrix_UnassignedNotCounted(t *testing.T) {
	in := testInput()
	matrix, err := BuildCoverageMatrix(in.Claims, in.Boundaries, in.Evidence, in.Verdicts)
	if err != nil {
		t.Fatalf("build matrix: %v", err)
	}

	total := 0
	for _, row := range matrix.Counts {
		for _, n := range row {
			total += n
		}
	}
	// e3 sits under the unassigned sentinel and must not appear anywhere
	if total != 2 {
		t.Errorf("expected 2 counted cells, got %d", total)
	}
}

func TestAggregate_WeightedTruthAndLabels(t *testing.T) {
	in := testInput()
	out, err := Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	// Central c1 carries weight 2: (90*2 + 30 + 50) / 4 = 65
	if out.Article.TruthPercentage != 65 {
		t.Errorf("expected weighted truth 65, got %v", out.Article.TruthPercentage)
	}
	if out.Article.Verdict != model.VerdictMostlyTrue {
		t.Errorf("expected mostly_true, got %s", out.Article.Verdict)
	}
	if out.Article.Confidence == 0 {
		t.Error("expected non-zero mean confidence")
	}
}

func TestAggregate_ClampsOutOfRangeTruth(t *testing.T) {
	in := testInput()
	in.Verdicts[0].TruthPercentage = 250 // noisy producer

	out, err := Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if out.Article.TruthPercentage > 100 {
		t.Errorf("article truth exceeded 100: %v", out.Article.TruthPercentage)
	}
}

func TestAggregate_Gate1(t *testing.T) {
	in := testInput()
	out, err := Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	gate1 := out.Gates.Gate1
	if gate1.EvidenceItems != 3 {
		t.Errorf("expected 3 evidence items, got %d", gate1.EvidenceItems)
	}
	if gate1.DistinctSources != 2 {
		t.Errorf("expected 2 distinct sources, got %d", gate1.DistinctSources)
	}
	if gate1.SearchesPerformed != 6 {
		t.Errorf("expected 6 searches, got %d", gate1.SearchesPerformed)
	}
	if !gate1.Passed {
		t.Error("expected gate1 to pass")
	}

	// Without a contradiction search gate1 fails
	in.Stats.ContradictionSearched = false
	out, err = Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if out.Gates.Gate1.Passed {
		t.Error("expected gate1 to fail without contradiction search")
	}
}

func TestAggregate_Gate4CentralKept(t *testing.T) {
	in := testInput()
	// Drop c1's confidence into the low tier; it is central so it stays
	// publishable and is tracked in CentralKept.
	in.Verdicts[0].Confidence = 10

	out, err := Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	gate4 := out.Gates.Gate4
	if gate4.CentralKept != 1 {
		t.Errorf("expected 1 central claim kept, got %d", gate4.CentralKept)
	}
	// c1 (central, low) + c2 (medium) publishable; c3 (low, not central) not
	if gate4.Publishable != 2 {
		t.Errorf("expected 2 publishable, got %d", gate4.Publishable)
	}
	if gate4.TierCounts[model.TierLow] != 2 {
		t.Errorf("expected 2 low-tier verdicts, got %d", gate4.TierCounts[model.TierLow])
	}
}

func TestAggregate_UnverifiedWithoutCitations(t *testing.T) {
	in := testInput()
	for i := range in.Verdicts {
		in.Verdicts[i].SupportingEvidenceIDs = nil
		in.Verdicts[i].ContradictingEvidenceIDs = nil
	}

	out, err := Aggregate(in)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if out.Article.Verdict != model.VerdictUnverified {
		t.Errorf("expected unverified article verdict, got %s", out.Article.Verdict)
	}
}
