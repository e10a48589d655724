package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVector is the named-sparse payload Qdrant scores with BM25.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	bm25Saturation = 1.2
	filenameWeight = 1.5
	unitWeight     = 1.3
	maxSparseTerms = 256
)

// unitTokens are measurement units that appear in specification tables.
// Chunks carrying them are the ones that answer value questions, so the
// tokens count a little heavier than ordinary prose terms.
var unitTokens = map[string]struct{}{
	"ksi": {}, "mpa": {}, "psi": {},
	"hrc": {}, "hbw": {}, "hb": {}, "hv": {},
	"mm": {}, "bar": {},
}

func encodeSparseDocument(text, filename string) sparseVector {
	weights := make(map[uint32]float64, 64)
	accumulate(weights, tokenize(text), 1.0)
	accumulate(weights, tokenize(filename), filenameWeight)
	return toSparse(weights)
}

func encodeSparseQuery(query string) sparseVector {
	weights := make(map[uint32]float64, 32)
	accumulate(weights, tokenize(query), 1.0)
	return toSparse(weights)
}

func accumulate(dst map[uint32]float64, tokens []string, base float64) {
	for _, token := range tokens {
		weight := base
		if _, ok := unitTokens[token]; ok {
			weight *= unitWeight
		}
		dst[hashToken(token)] += weight
	}
}

func toSparse(weights map[uint32]float64) sparseVector {
	if len(weights) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(weights))
	for idx := range weights {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tf := weights[idx]
		saturated := tf * (bm25Saturation + 1.0) / (tf + bm25Saturation)
		if math.IsNaN(saturated) || math.IsInf(saturated, 0) {
			saturated = 0
		}
		values = append(values, float32(saturated))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// tokenize lowercases and splits on non-alphanumerics, then fuses spec
// designation fragments: "A 790" and "A-790" become the single token
// "a790", matching how the same code tokenizes when written solid in a
// query or a filename. Codes already solid ("A790", "S32205", "5CT")
// survive the split as one token on their own.
func tokenize(s string) []string {
	parts := splitAlphaNum(s)
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		if i+1 < len(parts) && isDesignationLetter(parts[i]) && isDesignationNumber(parts[i+1]) {
			out = append(out, parts[i]+parts[i+1])
			i++
			continue
		}
		out = append(out, parts[i])
	}
	return out
}

func splitAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isDesignationLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'a' && s[0] <= 'z'
}

func isDesignationNumber(s string) bool {
	if len(s) < 3 || len(s) > 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
