package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
)

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// RemapCitations dedupes the source list by (document, page), renumbers
// sequentially, and rewrites the citation markers in the text to the new
// numbering. Markers pointing past the deduped source count are stripped.
func RemapCitations(text string, sources []domain.Source) (string, []domain.Source) {
	deduped := make([]domain.Source, 0, len(sources))
	refMap := make(map[int]int, len(sources))
	byLocation := make(map[string]int, len(sources))

	for _, src := range sources {
		key := fmt.Sprintf("%s|%d", src.Document, src.Page)
		if newRef, ok := byLocation[key]; ok {
			refMap[src.Ref] = newRef
			continue
		}
		newRef := len(deduped) + 1
		byLocation[key] = newRef
		refMap[src.Ref] = newRef
		src.Ref = newRef
		deduped = append(deduped, src)
	}

	return rewriteMarkers(text, refMap, len(deduped)), deduped
}

// rewriteMarkers substitutes old refs with new ones in descending numeric
// order so "[1]" is never rewritten before "[10]" has been handled, which
// would corrupt multi-digit refs.
func rewriteMarkers(text string, refMap map[int]int, sourceCount int) string {
	oldRefs := make([]int, 0, len(refMap))
	for old := range refMap {
		oldRefs = append(oldRefs, old)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(oldRefs)))

	// Two-phase substitution through collision-proof placeholders: a direct
	// [3]->[2] rewrite could collide with a still-unprocessed original [2].
	for _, old := range oldRefs {
		placeholder := fmt.Sprintf("\x00ref:%d\x00", refMap[old])
		text = strings.ReplaceAll(text, fmt.Sprintf("[%d]", old), placeholder)
	}
	for _, old := range oldRefs {
		placeholder := fmt.Sprintf("\x00ref:%d\x00", refMap[old])
		text = strings.ReplaceAll(text, placeholder, fmt.Sprintf("[%d]", refMap[old]))
	}

	// Strip any surviving marker that exceeds the deduped source count.
	return citationMarkerRe.ReplaceAllStringFunc(text, func(marker string) string {
		n, err := strconv.Atoi(strings.Trim(marker, "[]"))
		if err != nil || n < 1 || n > sourceCount {
			return ""
		}
		return marker
	})
}

// SourcesFromChunks builds the citation list for the final chunk set.
// Refs are assigned in chunk order, matching the [n] context blocks the
// generator saw.
func SourcesFromChunks(chunks []domain.Chunk) []domain.Source {
	out := make([]domain.Source, 0, len(chunks))
	for i, chunk := range chunks {
		out = append(out, domain.Source{
			Ref:       i + 1,
			Document:  chunk.Filename,
			Page:      chunk.PageNumber,
			Preview:   truncateContent(chunk.Content, 200),
			URL:       "/v1/documents/" + chunk.DocumentID,
			CharStart: chunk.CharStart,
			CharEnd:   chunk.CharEnd,
		})
	}
	return out
}
