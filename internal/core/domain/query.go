package domain

type Intent string

const (
	IntentLookup  Intent = "lookup"
	IntentCompare Intent = "compare"
	IntentList    Intent = "list"
	IntentExplain Intent = "explain"
	IntentVerify  Intent = "verify"
)

func ParseIntent(raw string) (Intent, bool) {
	switch Intent(raw) {
	case IntentLookup, IntentCompare, IntentList, IntentExplain, IntentVerify:
		return Intent(raw), true
	default:
		return IntentLookup, false
	}
}

// ExtractedCodes holds the spec identifiers found in raw query text.
type ExtractedCodes struct {
	ASTM        []string `json:"astm"`
	UNS         []string `json:"uns"`
	API         []string `json:"api"`
	SectionRefs []string `json:"section_refs"`
}

func (c ExtractedCodes) HasExactCodes() bool {
	return len(c.ASTM) > 0 || len(c.UNS) > 0 || len(c.API) > 0
}

// FusionWeights steers the keyword/vector score mix in hybrid search.
// Keyword and Vector sum to 1.
type FusionWeights struct {
	Keyword float64 `json:"keyword"`
	Vector  float64 `json:"vector"`
}

type Query struct {
	Raw     string         `json:"raw"`
	Cleaned string         `json:"cleaned"`
	Codes   ExtractedCodes `json:"codes"`
	Weights FusionWeights  `json:"weights"`
}

// Decomposition is the sub-query plan for one incoming question.
type Decomposition struct {
	Intent              Intent   `json:"intent"`
	SubQueries          []string `json:"subqueries"`
	RequiresAggregation bool     `json:"requires_aggregation"`
	Reasoning           string   `json:"reasoning"`
}

func SingleLookup(question, reasoning string) Decomposition {
	return Decomposition{
		Intent:     IntentLookup,
		SubQueries: []string{question},
		Reasoning:  reasoning,
	}
}
