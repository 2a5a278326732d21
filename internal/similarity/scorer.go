// Package similarity scores text pairs through the LLM collaborator in
// retried chunks. Pairs whose score cannot be obtained are absent from
// the result map - callers must pick an explicit conservative default
// for the missing case, the scorer never fabricates one.
package similarity

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/llm"
)

// Completer is the minimal LLM capability the scorer needs
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Pair is one text pair to score
type Pair struct {
	ID string
	A  string
	B  string
}

// Scorer chunks, requests, retries and collects pairwise similarity
type Scorer struct {
	llm        Completer
	chunkSize  int
	maxRetries int
	logger     *zap.Logger
}

// NewScorer creates a scorer. chunkSize defaults to 25 and maxRetries
// to 3 when non-positive.
func NewScorer(llm Completer, chunkSize, maxRetries int, logger *zap.Logger) *Scorer {
	if chunkSize <= 0 {
		chunkSize = 25
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{llm: llm, chunkSize: chunkSize, maxRetries: maxRetries, logger: logger}
}

// Score returns similarity in [0,1] per pair id. A chunk is retried up
// to the configured limit on errors, schema-invalid responses, and
// array-length mismatches - one shared budget for all failure classes.
// Pairs from a chunk that exhausts its retries are left absent.
func (s *Scorer) Score(ctx context.Context, pairs []Pair) map[string]float64 {
	results := make(map[string]float64, len(pairs))

	for start := 0; start < len(pairs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		s.scoreChunk(ctx, pairs[start:end], results)
	}

	return results
}

func (s *Scorer) scoreChunk(ctx context.Context, chunk []Pair, results map[string]float64) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		scores, err := s.requestChunk(ctx, chunk)
		if err != nil {
			s.logger.Warn("similarity chunk attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err))
			continue
		}

		for i, pair := range chunk {
			if score, ok := scores[i]; ok {
				results[pair.ID] = clamp01(score)
			}
			// A non-numeric entry is a single missing pair, not a chunk failure
		}
		return
	}

	s.logger.Warn("similarity chunk exhausted retries, pairs left unscored",
		zap.Int("chunk_size", len(chunk)))
}

// requestChunk performs one LLM round trip. The returned map holds the
// numeric scores by chunk index; non-numeric array entries are simply
// omitted.
func (s *Scorer) requestChunk(ctx context.Context, chunk []Pair) (map[int]float64, error) {
	type entry struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	entries := make([]entry, len(chunk))
	for i, p := range chunk {
		entries[i] = entry{A: p.A, B: p.B}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal pairs: %w", err)
	}

	system := fmt.Sprintf("You rate semantic similarity of text pairs. "+
		"Respond with a JSON array of exactly %d numbers between 0 and 1, "+
		"one per input pair, in order. No markdown, JSON only.", len(chunk))

	raw, err := s.llm.Complete(ctx, system, string(payload))
	if err != nil {
		return nil, err
	}

	var parsed []json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse similarity response: %w", err)
	}
	if len(parsed) != len(chunk) {
		return nil, fmt.Errorf("similarity response length %d, want %d", len(parsed), len(chunk))
	}

	scores := make(map[int]float64, len(parsed))
	for i, raw := range parsed {
		var score float64
		if err := json.Unmarshal(raw, &score); err != nil {
			continue
		}
		scores[i] = score
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

