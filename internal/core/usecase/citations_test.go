package usecase

import (
	"strings"
	"testing"

	"github.com/akazantsev/specqa/internal/core/domain"
)

func TestRemapCitationsDedupesByLocation(t *testing.T) {
	sources := []domain.Source{
		{Ref: 1, Document: "A790.pdf", Page: 5},
		{Ref: 2, Document: "A790.pdf", Page: 5}, // same location, different chunk
		{Ref: 3, Document: "A928.pdf", Page: 2},
	}

	text, deduped := RemapCitations("Yield is 65 ksi [1][2] and 70 ksi [3].", sources)

	if len(deduped) != 2 {
		t.Fatalf("deduped = %+v, want 2 sources", deduped)
	}
	if deduped[0].Ref != 1 || deduped[1].Ref != 2 {
		t.Fatalf("refs not sequential: %+v", deduped)
	}
	if text != "Yield is 65 ksi [1][1] and 70 ksi [2]." {
		t.Fatalf("text = %q", text)
	}
}

func TestRemapCitationsHandlesMultiDigitRefs(t *testing.T) {
	sources := make([]domain.Source, 0, 10)
	for i := 1; i <= 10; i++ {
		// Every source shares one location except the tenth.
		doc, page := "A790.pdf", 5
		if i == 10 {
			doc, page = "A928.pdf", 2
		}
		sources = append(sources, domain.Source{Ref: i, Document: doc, Page: page})
	}

	text, deduped := RemapCitations("compare [1] with [10]", sources)

	if len(deduped) != 2 {
		t.Fatalf("deduped = %+v", deduped)
	}
	// A naive "[1]" substitution would corrupt "[10]" first.
	if text != "compare [1] with [2]" {
		t.Fatalf("text = %q", text)
	}
}

func TestRemapCitationsSurvivesRefSwaps(t *testing.T) {
	sources := []domain.Source{
		{Ref: 1, Document: "A790.pdf", Page: 5},
		{Ref: 2, Document: "A790.pdf", Page: 5},
		{Ref: 3, Document: "A928.pdf", Page: 2},
	}

	// [3] maps to [2] while an original [2] maps to [1]; direct rewrites
	// would chain.
	text, _ := RemapCitations("see [3] then [2]", sources)

	if text != "see [2] then [1]" {
		t.Fatalf("text = %q", text)
	}
}

func TestRemapCitationsStripsDanglingMarkers(t *testing.T) {
	sources := []domain.Source{{Ref: 1, Document: "A790.pdf", Page: 5}}

	text, _ := RemapCitations("value [1], hallucinated [7]", sources)

	if strings.Contains(text, "[7]") {
		t.Fatalf("dangling marker survived: %q", text)
	}
	if !strings.Contains(text, "[1]") {
		t.Fatalf("valid marker lost: %q", text)
	}
}

func TestSourcesFromChunksMatchesContextNumbering(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "doc-1", Filename: "A790.pdf", PageNumber: 5, Content: "yield 65 ksi", CharStart: 100, CharEnd: 180},
		{ID: "c2", DocumentID: "doc-2", Filename: "A928.pdf", PageNumber: 2, Content: "yield 70 ksi"},
	}

	sources := SourcesFromChunks(chunks)

	if len(sources) != 2 || sources[0].Ref != 1 || sources[1].Ref != 2 {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].Document != "A790.pdf" || sources[0].Page != 5 {
		t.Fatalf("source[0] = %+v", sources[0])
	}
	if sources[0].URL != "/v1/documents/doc-1" {
		t.Fatalf("url = %q", sources[0].URL)
	}
	if sources[0].CharStart != 100 || sources[0].CharEnd != 180 {
		t.Fatalf("offsets = %d..%d", sources[0].CharStart, sources[0].CharEnd)
	}
}
