package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akazantsev/specqa/internal/core/domain"
)

func indexedEntries() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{ID: "doc-a790", Filename: "ASTM_A790_A790M-24.pdf", Status: domain.StatusIndexed},
		{ID: "doc-a928", Filename: "ASTM A928 2023.pdf", Status: domain.StatusIndexed},
		{ID: "doc-5ct", Filename: "API_5CT_10th_edition.pdf", Status: domain.StatusIndexed},
	}
}

func TestResolvePinsExplicitSpecReference(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	q := AnalyzeQuery("What is the yield strength of S32205 per A790?")
	filter := resolver.Resolve(context.Background(), q.Codes, q.Raw)

	if len(filter) != 1 || filter[0] != "doc-a790" {
		t.Fatalf("filter = %v, want [doc-a790]", filter)
	}
}

func TestResolveUNSOnlyNeverFilters(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	// S32205 appears in several specs with different property values, so a
	// UNS code alone must not narrow the search.
	q := AnalyzeQuery("S32205 yield strength")
	filter := resolver.Resolve(context.Background(), q.Codes, q.Raw)

	if filter != nil {
		t.Fatalf("filter = %v, want nil", filter)
	}
	if catalog.listCalls != 0 {
		t.Fatalf("resolver hit the catalog %d times for an unfilterable query", catalog.listCalls)
	}
}

func TestResolveMatchesAPISpecFilenames(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	q := AnalyzeQuery("API 5CT L80 hardness limits")
	filter := resolver.Resolve(context.Background(), q.Codes, q.Raw)

	if len(filter) != 1 || filter[0] != "doc-5ct" {
		t.Fatalf("filter = %v, want [doc-5ct]", filter)
	}
}

func TestResolveMultipleCodesSelectAllDocuments(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	q := AnalyzeQuery("Compare S32205 yield strength in A790 vs A928")
	filter := resolver.Resolve(context.Background(), q.Codes, q.Raw)

	if len(filter) != 2 {
		t.Fatalf("filter = %v, want both documents", filter)
	}
	if !filter.Contains("doc-a790") || !filter.Contains("doc-a928") {
		t.Fatalf("filter = %v, missing a compared document", filter)
	}
}

func TestResolveCachesMappingUntilInvalidated(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	q := AnalyzeQuery("scope of A790")
	ctx := context.Background()

	resolver.Resolve(ctx, q.Codes, q.Raw)
	resolver.Resolve(ctx, q.Codes, q.Raw)
	if catalog.listCalls != 1 {
		t.Fatalf("catalog listed %d times, want 1 (cached)", catalog.listCalls)
	}

	resolver.Invalidate()
	resolver.Resolve(ctx, q.Codes, q.Raw)
	if catalog.listCalls != 2 {
		t.Fatalf("catalog listed %d times after invalidation, want 2", catalog.listCalls)
	}
}

func TestResolveServesStaleMappingOnCatalogError(t *testing.T) {
	catalog := newCatalogFake()
	catalog.entries = indexedEntries()
	resolver := NewDocumentResolver(catalog, time.Minute)

	q := AnalyzeQuery("scope of A790")
	ctx := context.Background()

	first := resolver.Resolve(ctx, q.Codes, q.Raw)
	if len(first) != 1 {
		t.Fatalf("warmup filter = %v", first)
	}

	catalog.listErr = errors.New("connection refused")
	resolver.Invalidate()
	second := resolver.Resolve(ctx, q.Codes, q.Raw)

	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("stale filter = %v, want %v", second, first)
	}
}

func TestBuildCodeMappingSkipsUnindexedDocuments(t *testing.T) {
	mapping := buildCodeMapping([]domain.CatalogEntry{
		{ID: "doc-ready", Filename: "ASTM_A790.pdf", Status: domain.StatusIndexed},
		{ID: "doc-pending", Filename: "ASTM_A790_draft.pdf", Status: domain.StatusProcessing},
	})

	if got := mapping["A790"]; len(got) != 1 || got[0] != "doc-ready" {
		t.Fatalf("mapping[A790] = %v, want [doc-ready]", got)
	}
}
