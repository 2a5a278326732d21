package runner

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/model"
)

type scriptedCompleter struct {
	responses []string
	calls     int
}

func (s *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	if s.calls >= len(s.responses) {
		return "[]", nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func TestSynthesizeFiltersUnknownIDs(t *testing.T) {
	llm := &scriptedCompleter{responses: []string{`[
		{"claim_id": "c1", "truth_percentage": 130, "confidence": 80,
		 "reasoning": "well supported",
		 "supporting_evidence_ids": ["e1", "e-ghost"],
		 "contradicting_evidence_ids": []},
		{"claim_id": "c-ghost", "truth_percentage": 50, "confidence": 50}
	]`}}
	o := NewOrchestrated(nil, nil, nil, nil, llm, *config.DefaultConfig(), zap.NewNop())

	claims := []model.Claim{{ID: "c1", Text: "x", IsCentral: true}}
	items := []model.EvidenceItem{{ID: "e1", Statement: "y", ClaimDirection: model.DirectionSupports}}
	verdicts, err := o.synthesize(context.Background(), claims, nil, items)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	if len(verdicts) != 1 {
		t.Fatalf("verdicts = %d, want 1 (hallucinated claim dropped)", len(verdicts))
	}
	v := verdicts[0]
	if v.TruthPercentage != 100 {
		t.Errorf("truth = %v, want 100 (clamped)", v.TruthPercentage)
	}
	if len(v.SupportingEvidenceIDs) != 1 || v.SupportingEvidenceIDs[0] != "e1" {
		t.Errorf("supporting ids = %v, want [e1] (hallucinated id dropped)", v.SupportingEvidenceIDs)
	}
	if v.Verdict != model.VerdictTrue {
		t.Errorf("verdict = %s, want true", v.Verdict)
	}
}

func TestSynthesizeErrorsWhenNoVerdicts(t *testing.T) {
	llm := &scriptedCompleter{responses: []string{`[{"claim_id": "other", "truth_percentage": 50}]`}}
	o := NewOrchestrated(nil, nil, nil, nil, llm, *config.DefaultConfig(), zap.NewNop())

	claims := []model.Claim{{ID: "c1", Text: "x"}}
	if _, err := o.synthesize(context.Background(), claims, nil, nil); err == nil {
		t.Error("expected error when no verdict maps to a known claim")
	}
}

func TestApplyGuardsCapsUncitedRecencyVerdicts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guards.Grounding.Enabled = false
	o := NewOrchestrated(nil, nil, nil, nil, nil, *cfg, zap.NewNop())

	verdicts := []model.ClaimVerdict{
		{ClaimID: "cited", TruthPercentage: 90, Confidence: 80,
			SupportingEvidenceIDs: []string{"e1"}, Verdict: model.VerdictTrue},
		{ClaimID: "uncited", TruthPercentage: 90, Confidence: 80, Verdict: model.VerdictTrue},
	}
	items := []model.EvidenceItem{{ID: "e1", Statement: "y"}}

	var warns int
	report := func(_ int, level model.LogLevel, _ string) {
		if level == model.LevelWarn {
			warns++
		}
	}

	out := o.applyGuards(context.Background(), verdicts, items, true, report)

	if out[0].TruthPercentage != 90 || out[0].Verdict != model.VerdictTrue {
		t.Errorf("cited verdict changed: %+v", out[0])
	}
	if out[1].TruthPercentage != 50 || out[1].Verdict != model.VerdictUnverified {
		t.Errorf("uncited verdict = %+v, want capped to 50 unverified", out[1])
	}
	if out[1].Confidence != 30 {
		t.Errorf("uncited confidence = %v, want floored to 30", out[1].Confidence)
	}
	if warns != 1 {
		t.Errorf("warn events = %d, want 1", warns)
	}
}

func TestApplyGuardsNoOpWhenNotRecencySensitive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guards.Grounding.Enabled = false
	o := NewOrchestrated(nil, nil, nil, nil, nil, *cfg, zap.NewNop())

	verdicts := []model.ClaimVerdict{
		{ClaimID: "uncited", TruthPercentage: 90, Confidence: 80, Verdict: model.VerdictTrue},
	}
	out := o.applyGuards(context.Background(), verdicts, nil, false, discardProgress)
	if out[0].TruthPercentage != 90 {
		t.Errorf("truth = %v, want untouched 90", out[0].TruthPercentage)
	}
	// Relabeling still runs: uncited verdicts cannot keep a verified band.
	if out[0].Verdict != model.VerdictUnverified {
		t.Errorf("verdict = %s, want unverified for an uncited claim", out[0].Verdict)
	}
}
