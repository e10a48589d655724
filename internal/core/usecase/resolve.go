package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const defaultResolverTTL = 60 * time.Second

// Resolution cascade patterns, highest priority first. A "per A790" style
// reference pins the filter to exactly that spec even when other codes
// appear in the query.
var (
	perSpecRe     = regexp.MustCompile(`(?i)\b(?:per|according to|under|spec\.?)\s+(?:ASTM\s+)?([A-Z][ -]?\d{3,4}(?:-\d{2}[a-z]?)?)\b`)
	productFormRe = regexp.MustCompile(`(?i)\b([A-Z]\d{3,4})\s+(?:pipe|pipes|tube|tubes|tubing|plate|plates|sheet|bar|bars|forging|forgings|fitting|fittings|flange|flanges)\b`)
	apiContextRe  = regexp.MustCompile(`(?i)\bAPI[ -]?(?:SPEC[ -]?)?(\d+[A-Z]{0,3})\b`)
)

// DocumentResolver maps spec codes to indexed document IDs by scanning
// catalog filenames. The mapping is cached with a TTL; refresh is
// single-flight and stale reads are allowed while a refresh is in flight.
type DocumentResolver struct {
	catalog ports.DocumentCatalog
	ttl     time.Duration

	mu        sync.RWMutex
	byCode    map[string][]string
	refreshed time.Time

	group singleflight.Group
}

func NewDocumentResolver(catalog ports.DocumentCatalog, ttl time.Duration) *DocumentResolver {
	if ttl <= 0 {
		ttl = defaultResolverTTL
	}
	return &DocumentResolver{
		catalog: catalog,
		ttl:     ttl,
	}
}

// Resolve returns the document filter for a query, or nil (search
// everything) when no ASTM/API code can be pinned. UNS codes never filter
// alone: the same UNS designation legitimately carries different property
// values across specifications, so filtering on it would silently exclude
// the correct document.
func (r *DocumentResolver) Resolve(ctx context.Context, codes domain.ExtractedCodes, rawText string) domain.DocumentFilter {
	matched := r.cascade(codes, rawText)
	if len(matched) == 0 {
		return nil
	}

	mapping := r.mapping(ctx)
	if mapping == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var filter domain.DocumentFilter
	for _, code := range matched {
		for _, docID := range mapping[NormalizeSpecCode(code)] {
			if _, ok := seen[docID]; ok {
				continue
			}
			seen[docID] = struct{}{}
			filter = append(filter, docID)
		}
	}
	return filter
}

func (r *DocumentResolver) cascade(codes domain.ExtractedCodes, rawText string) []string {
	if m := perSpecRe.FindStringSubmatch(rawText); m != nil {
		return []string{m[1]}
	}
	if m := productFormRe.FindStringSubmatch(rawText); m != nil {
		return []string{m[1]}
	}
	if m := apiContextRe.FindStringSubmatch(rawText); m != nil {
		return []string{"API " + strings.ToUpper(m[1])}
	}
	if len(codes.ASTM) > 0 || len(codes.API) > 0 {
		out := make([]string, 0, len(codes.ASTM)+len(codes.API))
		out = append(out, codes.ASTM...)
		out = append(out, codes.API...)
		return out
	}
	return nil
}

// Invalidate drops the cached mapping. Called after a new document is
// indexed so the next query sees it.
func (r *DocumentResolver) Invalidate() {
	r.mu.Lock()
	r.refreshed = time.Time{}
	r.mu.Unlock()
}

func (r *DocumentResolver) mapping(ctx context.Context) map[string][]string {
	r.mu.RLock()
	stale := time.Since(r.refreshed) > r.ttl
	current := r.byCode
	r.mu.RUnlock()

	if !stale {
		return current
	}

	// Single-flight refresh. Concurrent callers holding a stale copy keep
	// reading it rather than piling onto the catalog.
	fresh, err, _ := r.group.Do("refresh", func() (any, error) {
		entries, err := r.catalog.ListIndexed(ctx)
		if err != nil {
			return nil, fmt.Errorf("list indexed documents: %w", err)
		}
		built := buildCodeMapping(entries)
		r.mu.Lock()
		r.byCode = built
		r.refreshed = time.Now()
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		// Serve the stale mapping; a missing filter only widens the search.
		return current
	}
	return fresh.(map[string][]string)
}

func buildCodeMapping(entries []domain.CatalogEntry) map[string][]string {
	out := make(map[string][]string, len(entries))
	for _, entry := range entries {
		if entry.Status != domain.StatusIndexed {
			continue
		}
		for _, code := range codesFromFilename(entry.Filename) {
			out[code] = append(out[code], entry.ID)
		}
	}
	for code := range out {
		sort.Strings(out[code])
	}
	return out
}

var filenameSepReplacer = strings.NewReplacer("_", " ", "-", " ", ".", " ")

func codesFromFilename(filename string) []string {
	// Separators become spaces so codes inside "ASTM_A790.pdf" sit on word
	// boundaries for the extraction patterns.
	upper := filenameSepReplacer.Replace(strings.ToUpper(filename))
	seen := make(map[string]struct{}, 4)
	var out []string
	add := func(code string) {
		code = NormalizeSpecCode(code)
		if code == "" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	for _, m := range astmCodeRe.FindAllStringSubmatch(upper, -1) {
		add(m[1] + m[2])
	}
	for _, m := range apiContextRe.FindAllStringSubmatch(upper, -1) {
		add("API " + m[1])
	}
	return out
}
