package understand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/similarity"
)

// Completer is the minimal LLM capability decomposition needs
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Decomposition is the structured understanding of one input
type Decomposition struct {
	Claims           []model.Claim
	Boundaries       []model.Boundary
	RecencySensitive bool
}

// Decomposer extracts atomic claims and analytical boundaries
type Decomposer struct {
	llm    Completer
	sim    *similarity.Scorer
	logger *zap.Logger
}

// NewDecomposer creates a decomposer. sim may be nil to skip
// similarity-based consolidation.
func NewDecomposer(llm Completer, sim *similarity.Scorer, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{llm: llm, sim: sim, logger: logger}
}

// DetectBoundariesHeuristic is the pattern-based boundary pre-detection
// short circuit. It is deliberately disabled: LLM-first detection produced
// strictly better frames in evaluation, so this always returns nil and
// the LLM call runs for every input.
func DetectBoundariesHeuristic(_ string) []model.Boundary {
	return nil
}

const decomposeSystemPrompt = `You decompose text into atomic factual claims and detect the distinct ` +
	`analytical frames (jurisdiction, methodology, time window) under which evidence must be interpreted. ` +
	`Respond with JSON only, no markdown: ` +
	`{"claims":[{"text":...,"is_central":bool,"category":"factual|statistical|causal|predictive|opinion","boundary":"<short_name or empty>"}],` +
	`"boundaries":[{"name":...,"short_name":...,"scopes":[...],"coherence":0..1}],` +
	`"recency_sensitive":bool}. ` +
	`Mark a claim central only when the text's main assertion depends on it. ` +
	`Leave "boundary" empty when the claim does not clearly belong to one frame.`

// Decompose runs heuristic pre-detection (currently always nil), then
// the LLM decomposition, then similarity-based consolidation.
func (d *Decomposer) Decompose(ctx context.Context, text string) (*Decomposition, error) {
	if pre := DetectBoundariesHeuristic(text); pre != nil {
		// Unreachable while heuristic detection stays disabled
		return &Decomposition{Boundaries: pre}, nil
	}

	raw, err := d.llm.Complete(ctx, decomposeSystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	var parsed struct {
		Claims []struct {
			Text      string  `json:"text"`
			IsCentral bool    `json:"is_central"`
			Category  string  `json:"category"`
			Boundary  string  `json:"boundary"`
		} `json:"claims"`
		Boundaries []struct {
			Name      string   `json:"name"`
			ShortName string   `json:"short_name"`
			Scopes    []string `json:"scopes"`
			Coherence float64  `json:"coherence"`
		} `json:"boundaries"`
		RecencySensitive bool `json:"recency_sensitive"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse decomposition: %w", err)
	}
	if len(parsed.Claims) == 0 {
		return nil, fmt.Errorf("decomposition produced no claims")
	}

	boundaries := make([]model.Boundary, 0, len(parsed.Boundaries))
	byShortName := make(map[string]string)
	for _, b := range parsed.Boundaries {
		boundary := model.Boundary{
			ID:                "b-" + uuid.NewString(),
			Name:              b.Name,
			ShortName:         b.ShortName,
			ConstituentScopes: b.Scopes,
			InternalCoherence: clamp01(b.Coherence),
		}
		boundaries = append(boundaries, boundary)
		byShortName[strings.ToLower(b.ShortName)] = boundary.ID
	}

	claims := make([]model.Claim, 0, len(parsed.Claims))
	for _, c := range parsed.Claims {
		boundaryID := ""
		if c.Boundary != "" {
			if id, ok := byShortName[strings.ToLower(c.Boundary)]; ok {
				boundaryID = id
			} else {
				// Unknown frame names stay unassigned, never guessed
				boundaryID = model.BoundaryUnassigned
			}
		}
		claims = append(claims, model.Claim{
			ID:         "c-" + uuid.NewString(),
			Text:       strings.TrimSpace(c.Text),
			IsCentral:  c.IsCentral,
			Category:   parseCategory(c.Category),
			BoundaryID: boundaryID,
		})
	}

	claims = d.mergeDuplicateClaims(ctx, claims)
	boundaries, claims = d.consolidateBoundaries(ctx, boundaries, claims)

	return &Decomposition{
		Claims:           claims,
		Boundaries:       boundaries,
		RecencySensitive: parsed.RecencySensitive || DetectRecencySensitivity(text),
	}, nil
}

// mergeDuplicateClaims drops near-duplicate claims. A pair with no
// obtainable similarity score is assumed dissimilar (missing => 0), so
// the scorer failing never collapses distinct claims.
func (d *Decomposer) mergeDuplicateClaims(ctx context.Context, claims []model.Claim) []model.Claim {
	if d.sim == nil || len(claims) < 2 {
		return claims
	}

	var pairs []similarity.Pair
	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			pairs = append(pairs, similarity.Pair{
				ID: claims[i].ID + "|" + claims[j].ID,
				A:  claims[i].Text,
				B:  claims[j].Text,
			})
		}
	}
	scores := d.sim.Score(ctx, pairs)

	dropped := make(map[string]bool)
	for i := 0; i < len(claims); i++ {
		if dropped[claims[i].ID] {
			continue
		}
		for j := i + 1; j < len(claims); j++ {
			if dropped[claims[j].ID] {
				continue
			}
			score, ok := scores[claims[i].ID+"|"+claims[j].ID]
			if !ok {
				score = 0 // missing => assume dissimilar, keep both
			}
			if score >= 0.9 {
				claims[i].IsCentral = claims[i].IsCentral || claims[j].IsCentral
				dropped[claims[j].ID] = true
			}
		}
	}

	if len(dropped) == 0 {
		return claims
	}
	kept := claims[:0]
	for _, c := range claims {
		if !dropped[c.ID] {
			kept = append(kept, c)
		}
	}
	d.logger.Debug("merged duplicate claims", zap.Int("dropped", len(dropped)))
	return kept
}

// consolidateBoundaries merges frames that describe the same context.
// A pair with no obtainable score is assumed maximally similar
// (missing => 1): when in doubt, avoid splitting evidence across
// near-identical frames.
func (d *Decomposer) consolidateBoundaries(ctx context.Context, boundaries []model.Boundary, claims []model.Claim) ([]model.Boundary, []model.Claim) {
	if d.sim == nil || len(boundaries) < 2 {
		return boundaries, claims
	}

	var pairs []similarity.Pair
	for i := 0; i < len(boundaries); i++ {
		for j := i + 1; j < len(boundaries); j++ {
			pairs = append(pairs, similarity.Pair{
				ID: boundaries[i].ID + "|" + boundaries[j].ID,
				A:  boundaryText(boundaries[i]),
				B:  boundaryText(boundaries[j]),
			})
		}
	}
	scores := d.sim.Score(ctx, pairs)

	merged := make(map[string]string) // dropped id -> surviving id
	for i := 0; i < len(boundaries); i++ {
		if _, gone := merged[boundaries[i].ID]; gone {
			continue
		}
		for j := i + 1; j < len(boundaries); j++ {
			if _, gone := merged[boundaries[j].ID]; gone {
				continue
			}
			score, ok := scores[boundaries[i].ID+"|"+boundaries[j].ID]
			if !ok {
				score = 1 // missing => assume same frame, avoid the split
			}
			if score >= 0.85 {
				merged[boundaries[j].ID] = boundaries[i].ID
			}
		}
	}

	if len(merged) == 0 {
		return boundaries, claims
	}

	kept := boundaries[:0]
	for _, b := range boundaries {
		if _, gone := merged[b.ID]; !gone {
			kept = append(kept, b)
		}
	}
	for i, c := range claims {
		if surviving, ok := merged[c.BoundaryID]; ok {
			claims[i].BoundaryID = surviving
		}
	}
	d.logger.Debug("consolidated boundaries", zap.Int("merged", len(merged)))
	return kept, claims
}

func boundaryText(b model.Boundary) string {
	return b.Name + " " + strings.Join(b.ConstituentScopes, " ")
}

func parseCategory(s string) model.ClaimCategory {
	switch model.ClaimCategory(strings.ToLower(s)) {
	case model.CategoryFactual, model.CategoryStatistical, model.CategoryCausal,
		model.CategoryPredictive, model.CategoryOpinion:
		return model.ClaimCategory(strings.ToLower(s))
	default:
		return model.CategoryFactual
	}
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

