package usecase

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	tableBoost          = 0.15
	numericDensityFloor = 0.20
)

var (
	tableHeaderRe = regexp.MustCompile(`(?i)\btable\s+[A-Z]?\d+`)
	unitRunRe     = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:ksi|mpa|psi|hrc|hbw|hv|°\s?[cf]|mm|in\.?|%)`)
	numericTokRe  = regexp.MustCompile(`^\d[\d.,%-]*$`)
)

// HybridRetriever wraps the search backend, boosting table-like content and
// degrading to vector-only search when the hybrid query fails for a
// non-timeout reason. Timeouts propagate typed so the caller can apply its
// own fallback.
type HybridRetriever struct {
	backend ports.SearchBackend
}

func NewHybridRetriever(backend ports.SearchBackend) *HybridRetriever {
	return &HybridRetriever{backend: backend}
}

func (r *HybridRetriever) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Chunk, error) {
	chunks, err := r.backend.Search(ctx, req)
	if err != nil {
		if domain.IsTimeout(err) {
			return nil, domain.NewTimeoutError("hybrid search", err)
		}
		chunks, err = r.backend.SearchVector(ctx, req.Query, req.K, req.Filter)
		if err != nil {
			if domain.IsTimeout(err) {
				return nil, domain.NewTimeoutError("vector search", err)
			}
			return nil, err
		}
		for i := range chunks {
			chunks[i].BM25Score = 0
		}
	}

	return BoostTableContent(chunks), nil
}

// BoostTableContent raises the combined score of chunks that look like
// spec tables, where the property values usually live. The boost is
// monotonic and capped at 1.0; the set is re-sorted afterwards.
func BoostTableContent(chunks []domain.Chunk) []domain.Chunk {
	for i := range chunks {
		if !looksLikeTable(chunks[i].Content) {
			continue
		}
		boosted := chunks[i].CombinedScore + tableBoost
		if boosted > 1.0 {
			boosted = 1.0
		}
		chunks[i].CombinedScore = boosted
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].CombinedScore != chunks[j].CombinedScore {
			return chunks[i].CombinedScore > chunks[j].CombinedScore
		}
		return chunks[i].ID < chunks[j].ID
	})
	return chunks
}

func looksLikeTable(content string) bool {
	if tableHeaderRe.MatchString(content) {
		return true
	}
	if len(unitRunRe.FindAllStringIndex(content, 3)) >= 3 {
		return true
	}
	return numericTokenDensity(content) > numericDensityFloor
}

func numericTokenDensity(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	numeric := 0
	for _, w := range words {
		if numericTokRe.MatchString(w) {
			numeric++
		}
	}
	return float64(numeric) / float64(len(words))
}
