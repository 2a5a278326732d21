package understand

import (
	"context"
	"errors"
	"testing"

	"github.com/arbiterhq/arbiter/internal/model"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.response, f.err
}

const decompositionResponse = `{
	"claims": [
		{"text": "The drug is approved in the EU", "is_central": true, "category": "factual", "boundary": "eu"},
		{"text": "The drug is not approved in the US", "is_central": true, "category": "factual", "boundary": "us"},
		{"text": "Approval took three years", "is_central": false, "category": "statistical", "boundary": "nonexistent"},
		{"text": "The approval process was rigorous", "is_central": false, "category": "opinion", "boundary": ""}
	],
	"boundaries": [
		{"name": "European Union regulatory frame", "short_name": "eu", "scopes": ["EMA"], "coherence": 0.9},
		{"name": "United States regulatory frame", "short_name": "us", "scopes": ["FDA"], "coherence": 0.85}
	],
	"recency_sensitive": false
}`

func TestDecomposer_ParsesClaimsAndBoundaries(t *testing.T) {
	d := NewDecomposer(fakeCompleter{response: decompositionResponse}, nil, nil)

	result, err := d.Decompose(context.Background(), "Drug approval differs between the EU and the US.")
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}

	if len(result.Claims) != 4 {
		t.Fatalf("expected 4 claims, got %d", len(result.Claims))
	}
	if len(result.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(result.Boundaries))
	}

	byShort := make(map[string]model.Boundary)
	for _, b := range result.Boundaries {
		byShort[b.ShortName] = b
		if b.ID == "" {
			t.Error("boundary missing generated id")
		}
	}

	if result.Claims[0].BoundaryID != byShort["eu"].ID {
		t.Error("first claim not mapped to the eu boundary")
	}
	if !result.Claims[0].IsCentral {
		t.Error("first claim lost centrality")
	}
	if result.Claims[2].BoundaryID != model.BoundaryUnassigned {
		t.Errorf("unknown frame name must map to the unassigned sentinel, got %q", result.Claims[2].BoundaryID)
	}
	if result.Claims[3].BoundaryID != "" {
		t.Errorf("claim without frame hint should stay empty, got %q", result.Claims[3].BoundaryID)
	}
	if result.Claims[2].Category != model.CategoryStatistical {
		t.Errorf("expected statistical category, got %s", result.Claims[2].Category)
	}
	if result.RecencySensitive {
		t.Error("expected recency_sensitive false")
	}
}

func TestDecomposer_UnknownCategoryDefaultsToFactual(t *testing.T) {
	response := `{"claims":[{"text":"X happened","is_central":true,"category":"banana","boundary":""}],"boundaries":[],"recency_sensitive":false}`
	d := NewDecomposer(fakeCompleter{response: response}, nil, nil)

	result, err := d.Decompose(context.Background(), "X happened.")
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if result.Claims[0].Category != model.CategoryFactual {
		t.Errorf("expected factual default, got %s", result.Claims[0].Category)
	}
}

func TestDecomposer_ErrorsSurface(t *testing.T) {
	d := NewDecomposer(fakeCompleter{err: errors.New("llm down")}, nil, nil)
	if _, err := d.Decompose(context.Background(), "anything"); err == nil {
		t.Error("expected error when LLM call fails")
	}

	d = NewDecomposer(fakeCompleter{response: "not json"}, nil, nil)
	if _, err := d.Decompose(context.Background(), "anything"); err == nil {
		t.Error("expected error on malformed response")
	}

	d = NewDecomposer(fakeCompleter{response: `{"claims":[],"boundaries":[]}`}, nil, nil)
	if _, err := d.Decompose(context.Background(), "anything"); err == nil {
		t.Error("expected error when no claims produced")
	}
}

func TestDecomposer_RecencyHeuristicBackstop(t *testing.T) {
	response := `{"claims":[{"text":"Rates are low","is_central":true,"category":"factual","boundary":""}],"boundaries":[],"recency_sensitive":false}`
	d := NewDecomposer(fakeCompleter{response: response}, nil, nil)

	result, err := d.Decompose(context.Background(), "What is the current interest rate?")
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if !result.RecencySensitive {
		t.Error("expected heuristic backstop to flag recency sensitivity")
	}
}
