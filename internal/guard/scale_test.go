package guard

import (
	"math"
	"testing"
)

func TestNormalizeTrackRecordScore(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"already normalized", 0.7, 0.7},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"percent scale", 85, 0.85},
		{"percent scale high", 150, 1},
		{"just above one", 1.5, 0.015},
		{"negative", -0.3, 0},
		{"nan", math.NaN(), 0.5},
		{"positive infinity", math.Inf(1), 0.5},
		{"negative infinity", math.Inf(-1), 0.5},
	}

	for _, tt := range tests {
		got := NormalizeTrackRecordScore(tt.input)
		if got != tt.want {
			t.Errorf("%s: NormalizeTrackRecordScore(%v) = %v, want %v", tt.name, tt.input, got, tt.want)
		}
		if got < 0 || got > 1 {
			t.Errorf("%s: output %v outside [0,1]", tt.name, got)
		}
	}
}

func TestClampTruthPercentage(t *testing.T) {
	if got := ClampTruthPercentage(-10); got != 0 {
		t.Errorf("expected -10 clamped to 0, got %v", got)
	}
	if got := ClampTruthPercentage(250); got != 100 {
		t.Errorf("expected 250 clamped to 100, got %v", got)
	}
	if got := ClampTruthPercentage(42.5); got != 42.5 {
		t.Errorf("expected 42.5 unchanged, got %v", got)
	}
	if got := ClampTruthPercentage(math.NaN()); got != 0 {
		t.Errorf("expected NaN clamped to 0, got %v", got)
	}
}

func TestValidateTruthPercentage(t *testing.T) {
	if err := ValidateTruthPercentage(50); err != nil {
		t.Errorf("expected 50 to validate, got %v", err)
	}
	if err := ValidateTruthPercentage(0); err != nil {
		t.Errorf("expected 0 to validate, got %v", err)
	}
	if err := ValidateTruthPercentage(100); err != nil {
		t.Errorf("expected 100 to validate, got %v", err)
	}
	if err := ValidateTruthPercentage(-1); err == nil {
		t.Error("expected error for -1")
	}
	if err := ValidateTruthPercentage(100.1); err == nil {
		t.Error("expected error for 100.1")
	}
	if err := ValidateTruthPercentage(math.NaN()); err == nil {
		t.Error("expected error for NaN")
	}
}
