package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// scriptedCompleter replays one response (or error) per call
type scriptedCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedCompleter) Complete(_ context.Context, _, user string) (string, error) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		return "", errors.New("no scripted response")
	}
	if c.errs != nil && c.errs[i] != nil {
		return "", c.errs[i]
	}
	return c.responses[i], nil
}

func makePairs(n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{ID: fmt.Sprintf("p%d", i), A: "left", B: "right"}
	}
	return pairs
}

func uniformScores(n int, v float64) string {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = v
	}
	b, _ := json.Marshal(scores)
	return string(b)
}

func TestScorer_TwoChunksSecondExhaustsRetries(t *testing.T) {
	// 28 pairs -> chunks of 25 and 3. First chunk succeeds, second chunk
	// fails all 3 attempts, leaving its pairs absent - not zero.
	completer := &scriptedCompleter{
		responses: []string{uniformScores(25, 0.8), "", "", ""},
		errs:      []error{nil, errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(28))

	if len(results) != 25 {
		t.Fatalf("expected exactly 25 scored pairs, got %d", len(results))
	}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("p%d", i)
		if score, ok := results[id]; !ok || score != 0.8 {
			t.Errorf("%s: expected 0.8, got %v (present=%v)", id, score, ok)
		}
	}
	for i := 25; i < 28; i++ {
		if _, ok := results[fmt.Sprintf("p%d", i)]; ok {
			t.Errorf("p%d: expected absent after exhausted retries", i)
		}
	}
	if completer.calls != 4 {
		t.Errorf("expected 4 LLM calls (1 + 3 retries), got %d", completer.calls)
	}
}

func TestScorer_RetriesOnLengthMismatch(t *testing.T) {
	// Wrong-length array burns a retry; correct response on attempt 2
	completer := &scriptedCompleter{
		responses: []string{uniformScores(2, 0.5), uniformScores(3, 0.5)},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(3))
	if len(results) != 3 {
		t.Errorf("expected 3 scored pairs after retry, got %d", len(results))
	}
	if completer.calls != 2 {
		t.Errorf("expected 2 calls, got %d", completer.calls)
	}
}

func TestScorer_RetriesOnInvalidJSON(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{"not json at all", uniformScores(2, 0.3)},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(2))
	if len(results) != 2 {
		t.Errorf("expected 2 scored pairs, got %d", len(results))
	}
}

func TestScorer_NonNumericEntryIsSingleMissingPair(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{`[0.9, "n/a", 0.2]`},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(3))
	if completer.calls != 1 {
		t.Errorf("non-numeric entry must not trigger a chunk retry, got %d calls", completer.calls)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 scored pairs, got %d", len(results))
	}
	if _, ok := results["p1"]; ok {
		t.Error("p1: expected absent for non-numeric entry")
	}
	if results["p0"] != 0.9 || results["p2"] != 0.2 {
		t.Errorf("unexpected scores: %v", results)
	}
}

func TestScorer_ClampsOutOfRangeScores(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{`[1.7, -0.4]`},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(2))
	if results["p0"] != 1 {
		t.Errorf("expected 1.7 clamped to 1, got %v", results["p0"])
	}
	if results["p1"] != 0 {
		t.Errorf("expected -0.4 clamped to 0, got %v", results["p1"])
	}
}

func TestScorer_StripsCodeFence(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{"```json\n[0.6]\n```"},
	}
	scorer := NewScorer(completer, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(1))
	if results["p0"] != 0.6 {
		t.Errorf("expected fenced response parsed, got %v", results)
	}
}

func TestScorer_CallerChoosesMissingDefault(t *testing.T) {
	scorer := NewScorer(&scriptedCompleter{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}, responses: []string{"", "", ""}}, 25, 3, nil)

	results := scorer.Score(context.Background(), makePairs(1))

	if _, ok := results["p0"]; ok {
		t.Fatal("expected p0 absent")
	}

	// Missing is a distinct signal: a merge caller assumes dissimilar,
	// a split-avoidance caller assumes maximally similar.
	mergeScore := 0.0
	if score, ok := results["p0"]; ok {
		mergeScore = score
	}
	splitScore := 1.0
	if score, ok := results["p0"]; ok {
		splitScore = score
	}
	if mergeScore != 0 || splitScore != 1 {
		t.Errorf("conservative defaults wrong: merge=%v split=%v", mergeScore, splitScore)
	}
}
