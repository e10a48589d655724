package domain

import (
	"math"
	"time"
)

type RetryStrategy string

const (
	RetryNone           RetryStrategy = ""
	RetryBroaderSearch  RetryStrategy = "broader_search"
	RetrySectionLookup  RetryStrategy = "section_lookup"
	RetryMoreCandidates RetryStrategy = "more_candidates"
)

// Evaluation is the retrieval judge's verdict on a chunk set.
type Evaluation struct {
	IsRelevant        bool          `json:"is_relevant"`
	Confidence        int           `json:"confidence"`
	Reason            string        `json:"reason"`
	SuggestedStrategy RetryStrategy `json:"suggested_strategy"`
}

// RegenerationBudget caps answer regenerations across all post-generation
// gates for one query lifecycle. A single query's gates run sequentially,
// so a plain counter suffices; each query gets its own instance.
type RegenerationBudget struct {
	used int
	max  int
}

func NewRegenerationBudget(max int) *RegenerationBudget {
	if max < 0 {
		max = 0
	}
	return &RegenerationBudget{max: max}
}

func (b *RegenerationBudget) Remaining() int {
	return b.max - b.used
}

// Spend consumes one attempt. It returns false without consuming anything
// when the budget is exhausted; gates must check-before-spend.
func (b *RegenerationBudget) Spend() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

func (b *RegenerationBudget) Used() int {
	return b.used
}

type NumericClaim struct {
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

type GroundingResult struct {
	Score      int            `json:"score"`
	Passed     bool           `json:"passed"`
	Ungrounded []NumericClaim `json:"ungrounded,omitempty"`
}

type CoherenceResult struct {
	Score          int    `json:"score"`
	Passed         bool   `json:"passed"`
	MissingAspects string `json:"missing_aspects,omitempty"`
}

type ConfidenceScore struct {
	Overall   int `json:"overall"`
	Retrieval int `json:"retrieval"`
	Grounding int `json:"grounding"`
	Coherence int `json:"coherence"`
}

// OverallConfidence fuses the per-stage scores with fixed weights.
func OverallConfidence(retrieval, grounding, coherence int) int {
	overall := math.Round(0.35*float64(retrieval) + 0.25*float64(grounding) + 0.40*float64(coherence))
	return ClampScore(int(overall))
}

func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type Source struct {
	Ref       int    `json:"ref"`
	Document  string `json:"document"`
	Page      int    `json:"page"`
	Preview   string `json:"preview"`
	URL       string `json:"url,omitempty"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// AnswerStats carries per-question pipeline counters for observability.
// It never reaches the client payload.
type AnswerStats struct {
	RetrievalRetries int
	Regenerations    int
	RerankFallback   bool
	CandidatesMerged int
	StageDurations   map[string]time.Duration
}

type Answer struct {
	Text       string          `json:"text"`
	Sources    []Source        `json:"sources"`
	Confidence ConfidenceScore `json:"confidence"`
	Stats      AnswerStats     `json:"-"`
}
