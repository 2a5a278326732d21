// Package evidence gathers and grades evidence for claims through the
// search and LLM collaborators.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/search"
	"github.com/arbiterhq/arbiter/internal/sources"
)

// Completer is the minimal LLM capability grading needs
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Searcher is the search capability the gatherer fans out over
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// Stats records the gathering work performed, feeding quality gate 1
type Stats struct {
	SearchesPerformed     int
	ContradictionSearched bool
}

// Gatherer collects evidence for claims
type Gatherer struct {
	searcher    Searcher
	llm         Completer
	classifier  *sources.Classifier
	maxResults  int
	parallelism int
	logger      *zap.Logger
}

// NewGatherer creates a gatherer
func NewGatherer(searcher Searcher, llm Completer, classifier *sources.Classifier, maxResults, parallelism int, logger *zap.Logger) *Gatherer {
	if maxResults <= 0 {
		maxResults = 8
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{
		searcher:    searcher,
		llm:         llm,
		classifier:  classifier,
		maxResults:  maxResults,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Gather searches for each claim - one supporting query and one
// contradiction query - grades the hits, and returns evidence items
// with their sources. Individual claim failures degrade the evidence
// set rather than failing the whole job.
func (g *Gatherer) Gather(ctx context.Context, claims []model.Claim, boundaries []model.Boundary) ([]model.EvidenceItem, []model.Source, Stats, error) {
	var mu sync.Mutex
	var items []model.EvidenceItem
	sourcesByURL := make(map[string]model.Source)
	stats := Stats{}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.parallelism)

	for _, claim := range claims {
		grp.Go(func() error {
			queries := []string{
				claim.Text,
				"evidence against " + claim.Text,
			}
			for qi, query := range queries {
				results, err := g.searcher.Search(grpCtx, query, g.maxResults)

				mu.Lock()
				stats.SearchesPerformed++
				if qi == 1 && err == nil {
					stats.ContradictionSearched = true
				}
				mu.Unlock()

				if err != nil {
					g.logger.Warn("evidence search failed",
						zap.String("claim_id", claim.ID),
						zap.Error(err))
					continue
				}
				if len(results) == 0 {
					continue
				}

				graded, err := g.grade(grpCtx, claim, boundaries, results)
				if err != nil {
					g.logger.Warn("evidence grading failed",
						zap.String("claim_id", claim.ID),
						zap.Error(err))
					continue
				}

				mu.Lock()
				for _, e := range graded {
					existing, ok := sourcesByURL[e.source.URL]
					if !ok {
						sourcesByURL[e.source.URL] = e.source
						existing = e.source
					}
					// Items always reference the surviving source id
					e.item.SourceID = existing.ID
					items = append(items, e.item)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, stats, fmt.Errorf("gather evidence: %w", err)
	}

	sourceList := make([]model.Source, 0, len(sourcesByURL))
	for _, s := range sourcesByURL {
		sourceList = append(sourceList, s)
	}
	return items, sourceList, stats, nil
}

type gradedEvidence struct {
	item   model.EvidenceItem
	source model.Source
}

const gradeSystemPrompt = `You grade search results as evidence for a claim within its analytical frames. ` +
	`Respond with JSON only: [{"index":<result index>,"statement":<the factual statement the result makes>,` +
	`"direction":"supports|contradicts|neutral","probative":"high|medium|low","boundary":"<short_name or empty>"}]. ` +
	`Omit results that are not evidence at all. Leave "boundary" empty when the evidence does not clearly ` +
	`belong to one frame - never guess.`

// grade asks the LLM to turn raw hits into graded evidence items
func (g *Gatherer) grade(ctx context.Context, claim model.Claim, boundaries []model.Boundary, results []search.Result) ([]gradedEvidence, error) {
	type hit struct {
		Index   int    `json:"index"`
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{Index: i, Title: r.Title, URL: r.URL, Snippet: r.Snippet}
	}

	frames := make([]string, len(boundaries))
	for i, b := range boundaries {
		frames[i] = b.ShortName
	}

	payload, err := json.Marshal(map[string]any{
		"claim":   claim.Text,
		"frames":  frames,
		"results": hits,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal grading request: %w", err)
	}

	raw, err := g.llm.Complete(ctx, gradeSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Index     int    `json:"index"`
		Statement string `json:"statement"`
		Direction string `json:"direction"`
		Probative string `json:"probative"`
		Boundary  string `json:"boundary"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse grading response: %w", err)
	}

	byShortName := make(map[string]string, len(boundaries))
	for _, b := range boundaries {
		byShortName[strings.ToLower(b.ShortName)] = b.ID
	}

	var graded []gradedEvidence
	for _, p := range parsed {
		if p.Index < 0 || p.Index >= len(results) || p.Statement == "" {
			continue
		}
		result := results[p.Index]

		tier := model.TierUnknown
		if g.classifier != nil {
			tier = g.classifier.Classify(result.URL)
		}
		source := model.Source{
			ID:               "s-" + uuid.NewString(),
			URL:              result.URL,
			Host:             hostOf(result.URL),
			Title:            result.Title,
			Authority:        tier,
			TrackRecordScore: guard.NormalizeTrackRecordScore(sources.TrackRecordSeed(tier)),
		}

		boundaryID := ""
		if p.Boundary != "" {
			if id, ok := byShortName[strings.ToLower(p.Boundary)]; ok {
				boundaryID = id
			} else {
				boundaryID = model.BoundaryUnassigned
			}
		}

		graded = append(graded, gradedEvidence{
			item: model.EvidenceItem{
				ID:             "e-" + uuid.NewString(),
				Statement:      p.Statement,
				SourceID:       source.ID,
				BoundaryID:     boundaryID,
				ClaimDirection: parseDirection(p.Direction),
				ProbativeValue: parseProbative(p.Probative),
			},
			source: source,
		})
	}
	return graded, nil
}

func parseDirection(s string) model.ClaimDirection {
	switch model.ClaimDirection(strings.ToLower(s)) {
	case model.DirectionSupports, model.DirectionContradicts, model.DirectionNeutral:
		return model.ClaimDirection(strings.ToLower(s))
	default:
		return model.DirectionNeutral
	}
}

func parseProbative(s string) model.ProbativeValue {
	switch model.ProbativeValue(strings.ToLower(s)) {
	case model.ProbativeHigh, model.ProbativeMedium, model.ProbativeLow:
		return model.ProbativeValue(strings.ToLower(s))
	default:
		return model.ProbativeLow
	}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

