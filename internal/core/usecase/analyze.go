package usecase

import (
	"regexp"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
)

// Fusion weights applied by the search backend. Exact spec codes in the
// query shift weight toward keyword matching so designations like "A790"
// match lexically instead of relying on embedding proximity.
var (
	boostWeights   = domain.FusionWeights{Keyword: 0.65, Vector: 0.35}
	defaultWeights = domain.FusionWeights{Keyword: 0.30, Vector: 0.70}
)

var (
	astmCodeRe   = regexp.MustCompile(`\b([A-Z])[ -]?(\d{3,4})(?:-\d{2}[a-z]?)?\b`)
	unsCodeRe    = regexp.MustCompile(`\b([A-Z]\d{5})\b`)
	apiCodeRe    = regexp.MustCompile(`\bAPI[ -]?(?:SPEC[ -]?)?(\d+[A-Z]{0,3})\b`)
	sectionRefRe = regexp.MustCompile(`(?i)\b(?:section|clause|paragraph|para\.?|table|annex|appendix)\s+([A-Z]?\d+(?:\.\d+)*)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// AnalyzeQuery extracts spec codes and section references from raw query
// text and derives the fusion weights. Pure and deterministic; the input is
// never mutated.
func AnalyzeQuery(raw string) domain.Query {
	cleaned := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	upper := strings.ToUpper(cleaned)

	codes := domain.ExtractedCodes{
		ASTM:        extractASTMCodes(upper),
		UNS:         dedupeMatches(unsCodeRe.FindAllString(upper, -1)),
		API:         extractAPICodes(upper),
		SectionRefs: extractSectionRefs(cleaned),
	}

	weights := defaultWeights
	if codes.HasExactCodes() {
		weights = boostWeights
	}

	return domain.Query{
		Raw:     raw,
		Cleaned: cleaned,
		Codes:   codes,
		Weights: weights,
	}
}

func extractASTMCodes(upper string) []string {
	matches := astmCodeRe.FindAllStringSubmatch(upper, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		code := m[1] + m[2]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func extractAPICodes(upper string) []string {
	matches := apiCodeRe.FindAllStringSubmatch(upper, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		code := "API " + m[1]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func extractSectionRefs(text string) []string {
	matches := sectionRefRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		ref := m[1]
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func dedupeMatches(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// NormalizeSpecCode strips an "ASTM " prefix, inner spacing, and a trailing
// year suffix ("ASTM A 790-18" -> "A790") so cache lookups are stable
// across phrasing. API codes keep their "API " prefix.
func NormalizeSpecCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if strings.HasPrefix(code, "API") {
		rest := strings.TrimSpace(strings.TrimPrefix(code, "API"))
		return "API " + strings.ReplaceAll(rest, " ", "")
	}
	code = strings.TrimSpace(strings.TrimPrefix(code, "ASTM"))
	code = strings.ReplaceAll(code, " ", "")
	if idx := strings.IndexByte(code, '-'); idx > 0 {
		code = code[:idx]
	}
	return code
}
