package usecase

import (
	"context"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

// MergeCandidates dedupes multi-sub-query result sets by chunk ID,
// preserving first-seen order. Merging is idempotent.
func MergeCandidates(resultSets ...[]domain.Chunk) []domain.Chunk {
	total := 0
	for _, set := range resultSets {
		total += len(set)
	}

	seen := make(map[string]struct{}, total)
	out := make([]domain.Chunk, 0, total)
	for _, set := range resultSets {
		for _, chunk := range set {
			if _, ok := seen[chunk.ID]; ok {
				continue
			}
			seen[chunk.ID] = struct{}{}
			out = append(out, chunk)
		}
	}
	return out
}

// subqueryHitCounts counts merged chunks attributable to each sub-query's
// result set, by chunk ID membership.
func subqueryHitCounts(subQueries []string, resultSets [][]domain.Chunk) []domain.SubqueryCount {
	counts := make([]domain.SubqueryCount, len(subQueries))
	for i, sq := range subQueries {
		hits := 0
		if i < len(resultSets) {
			hits = len(resultSets[i])
		}
		counts[i] = domain.SubqueryCount{SubQuery: sq, Hits: hits}
	}
	return counts
}

// gapSubqueries returns sub-queries with zero hits ("missing") or with a
// disproportionately small share of the pool ("thin"). Only meaningful for
// multi-sub-query decompositions.
func gapSubqueries(counts []domain.SubqueryCount) []string {
	if len(counts) < 2 {
		return nil
	}
	total := 0
	for _, c := range counts {
		total += c.Hits
	}
	if total == 0 {
		// Every sub-query missed; all of them need the repair round.
		gaps := make([]string, 0, len(counts))
		for _, c := range counts {
			gaps = append(gaps, c.SubQuery)
		}
		return gaps
	}

	// Thin means under half an even share of the pool.
	thinFloor := total / (2 * len(counts))
	var gaps []string
	for _, c := range counts {
		if c.Hits == 0 || c.Hits < thinFloor {
			gaps = append(gaps, c.SubQuery)
		}
	}
	return gaps
}

// RepairCoverage runs exactly one gap-fill retrieval round at double the
// candidate budget for missing/thin sub-queries and merges the results back.
func RepairCoverage(
	ctx context.Context,
	retriever *HybridRetriever,
	q domain.Query,
	filter domain.DocumentFilter,
	counts []domain.SubqueryCount,
	merged []domain.Chunk,
	candidateBudget int,
) []domain.Chunk {
	gaps := gapSubqueries(counts)
	if len(gaps) == 0 {
		return merged
	}

	extra := make([][]domain.Chunk, 0, len(gaps))
	for _, sq := range gaps {
		chunks, err := retriever.Search(ctx, ports.SearchRequest{
			Query:   sq,
			K:       candidateBudget * 2,
			Filter:  filter,
			Weights: q.Weights,
		})
		if err != nil {
			continue
		}
		extra = append(extra, chunks)
	}
	if len(extra) == 0 {
		return merged
	}

	sets := append([][]domain.Chunk{merged}, extra...)
	return MergeCandidates(sets...)
}

// BalanceAcrossDocuments guarantees that every document selected by the
// filter contributes at least one chunk to the final top-K of a comparison
// query. When a filtered document is absent, the globally lowest-scoring
// selected chunk is swapped for that document's best available candidate.
func BalanceAcrossDocuments(selected, pool []domain.Chunk, filter domain.DocumentFilter) []domain.Chunk {
	if len(filter) < 2 || len(selected) == 0 {
		return selected
	}

	for _, docID := range filter {
		represented := make(map[string]struct{}, len(selected))
		for _, chunk := range selected {
			represented[chunk.DocumentID] = struct{}{}
		}
		if _, ok := represented[docID]; ok {
			continue
		}
		best, found := bestFromDocument(pool, selected, docID)
		if !found {
			continue
		}
		selected[evictionIndex(selected)] = best
	}
	return selected
}

func bestFromDocument(pool, selected []domain.Chunk, docID string) (domain.Chunk, bool) {
	chosen := make(map[string]struct{}, len(selected))
	for _, chunk := range selected {
		chosen[chunk.ID] = struct{}{}
	}

	var best domain.Chunk
	found := false
	for _, chunk := range pool {
		if chunk.DocumentID != docID {
			continue
		}
		if _, ok := chosen[chunk.ID]; ok {
			continue
		}
		if !found || chunk.CombinedScore > best.CombinedScore {
			best = chunk
			found = true
		}
	}
	return best, found
}

// evictionIndex picks the globally lowest-scoring chunk, preferring one
// whose document keeps other representatives after the swap.
func evictionIndex(chunks []domain.Chunk) int {
	perDoc := make(map[string]int, len(chunks))
	for _, chunk := range chunks {
		perDoc[chunk.DocumentID]++
	}

	lowest := -1
	for i := range chunks {
		if perDoc[chunks[i].DocumentID] < 2 {
			continue
		}
		if lowest < 0 || chunks[i].CombinedScore < chunks[lowest].CombinedScore {
			lowest = i
		}
	}
	if lowest >= 0 {
		return lowest
	}

	lowest = 0
	for i := 1; i < len(chunks); i++ {
		if chunks[i].CombinedScore < chunks[lowest].CombinedScore {
			lowest = i
		}
	}
	return lowest
}
