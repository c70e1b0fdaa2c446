package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"photo-album/internal/database"
	"photo-album/internal/embedding"
	"photo-album/internal/logging"
	"photo-album/internal/metrics"
)

// Mode selects the matching strategy.
type Mode string

const (
	// ModeText matches a substring against titles, descriptions, AI
	// descriptions and tags.
	ModeText Mode = "text"

	// ModeAI prefers exact matches against AI fields and falls back to
	// vector similarity.
	ModeAI Mode = "ai"
)

// Thresholding constants for the vector pass. The adaptive threshold is
// min + (mean - min) * tightness, clamped to maxThreshold.
const (
	tightness    = 0.2
	maxThreshold = 0.09
)

// Result is one ranked search hit. Distance is set only when the hit
// came from the vector pass.
type Result struct {
	Item     database.MediaItem `json:"item"`
	Distance float32            `json:"distance,omitempty"`
}

// Response carries the ranked hits and which pass produced them.
type Response struct {
	Results    []Result `json:"results"`
	Resolution string   `json:"resolution"`
}

// Store supplies the candidate set for a scope. Visibility filtering
// happened upstream.
type Store interface {
	Candidates(ctx context.Context, scope database.Scope) ([]database.MediaItem, error)
}

// TextEmbedder embeds query text into the shared vector space.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Engine answers media search queries over completed AI analysis
// results.
type Engine struct {
	store    Store
	embedder TextEmbedder
}

func NewEngine(store Store, embedder TextEmbedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// Search runs one query. Candidates come back newest upload first from
// the store, which is already the required order for every text pass.
func (e *Engine) Search(ctx context.Context, query string, mode Mode, scope database.Scope) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.SearchQueryDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	candidates, err := e.store.Candidates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load search candidates: %w", err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		metrics.SearchQueriesTotal.WithLabelValues(string(mode), "empty").Inc()
		return &Response{Results: plain(candidates), Resolution: "empty"}, nil
	}

	if mode == ModeAI {
		return e.searchAI(ctx, query, candidates)
	}
	metrics.SearchQueriesTotal.WithLabelValues(string(mode), "text").Inc()
	return &Response{
		Results:    plain(filterText(candidates, query, false)),
		Resolution: "text",
	}, nil
}

func (e *Engine) searchAI(ctx context.Context, query string, candidates []database.MediaItem) (*Response, error) {
	// Exact matches against the AI fields always beat vector
	// similarity: a query naming an extracted tag verbatim is stronger
	// evidence than any distance score.
	if exact := filterText(candidates, query, true); len(exact) > 0 {
		metrics.SearchQueriesTotal.WithLabelValues(string(ModeAI), "exact").Inc()
		return &Response{Results: plain(exact), Resolution: "exact"}, nil
	}

	queryVec, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debug("Query embedding unavailable, using text fallback: %v", err)
		metrics.SearchQueriesTotal.WithLabelValues(string(ModeAI), "text_fallback").Inc()
		return &Response{
			Results:    plain(filterText(candidates, query, false)),
			Resolution: "text_fallback",
		}, nil
	}

	metrics.SearchQueriesTotal.WithLabelValues(string(ModeAI), "vector").Inc()
	return &Response{Results: rankByDistance(candidates, queryVec), Resolution: "vector"}, nil
}

// filterText returns candidates matching query as a case-insensitive
// substring of their text fields or as a tag. With aiOnly set, only the
// AI description and tags count.
func filterText(candidates []database.MediaItem, query string, aiOnly bool) []database.MediaItem {
	needle := strings.ToLower(query)
	var matched []database.MediaItem
	for _, item := range candidates {
		if matchesText(&item, needle, aiOnly) {
			matched = append(matched, item)
		}
	}
	return matched
}

func matchesText(item *database.MediaItem, needle string, aiOnly bool) bool {
	if !aiOnly {
		if strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Description), needle) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(item.AIDescription), needle) {
		return true
	}
	for _, tag := range item.AITags {
		// Tag matching is exact membership, not substring: the query
		// "car" matches the tag "car" but not "carpet".
		if strings.EqualFold(tag, needle) {
			return true
		}
	}
	return false
}

// rankByDistance scores every candidate with a stored embedding against
// the query vector and applies the adaptive threshold. When the
// threshold removes everything, the full distance-ordered set comes back
// instead. Some result always beats an empty page when candidates exist.
func rankByDistance(candidates []database.MediaItem, queryVec []float32) []Result {
	var scored []Result
	for _, item := range candidates {
		if item.Embedding == nil {
			continue
		}
		scored = append(scored, Result{
			Item:     item,
			Distance: embedding.Distance(queryVec, item.Embedding),
		})
	}
	metrics.SearchCandidatesScored.Observe(float64(len(scored)))
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	threshold := adaptiveThreshold(scored)
	var kept []Result
	for _, r := range scored {
		if r.Distance < threshold {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return scored
	}
	return kept
}

// adaptiveThreshold derives the distance cutoff from the observed
// distribution: tight when the best hits stand out from the mean, never
// looser than maxThreshold.
func adaptiveThreshold(scored []Result) float32 {
	min := scored[0].Distance
	var sum float64
	for _, r := range scored {
		sum += float64(r.Distance)
	}
	mean := float32(sum / float64(len(scored)))

	threshold := min + (mean-min)*tightness
	if threshold > maxThreshold {
		threshold = maxThreshold
	}
	return threshold
}

func plain(items []database.MediaItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Item: item}
	}
	return results
}
