package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const maxSubQueries = 4

var comparisonMarkers = []string{
	" vs ", " vs. ", "versus", "compare", "comparison", "difference", "differences",
	"better", "between", "both",
}

var listMarkers = []string{
	"list ", "list all", "all grades", "which grades", "what grades", "enumerate",
}

// QueryDecomposer splits a question into sub-queries with an intent label.
// Simple lookups skip the judge call entirely; judge failure is never
// fatal and falls back to a single-subquery lookup.
type QueryDecomposer struct {
	judge ports.JudgeClient
}

func NewQueryDecomposer(judge ports.JudgeClient) *QueryDecomposer {
	return &QueryDecomposer{judge: judge}
}

func (d *QueryDecomposer) Decompose(ctx context.Context, q domain.Query) domain.Decomposition {
	if !needsDecomposition(q) {
		return domain.SingleLookup(q.Cleaned, "single-entity lookup, no decomposition needed")
	}

	completion, err := d.judge.CompleteJSON(ctx, buildDecompositionPrompt(q.Cleaned))
	if err != nil {
		return domain.SingleLookup(q.Cleaned, "fallback")
	}

	dec, err := parseDecomposition(completion.Text)
	if err != nil {
		return domain.SingleLookup(q.Cleaned, "fallback")
	}
	return dec
}

func needsDecomposition(q domain.Query) bool {
	lower := strings.ToLower(q.Cleaned)
	for _, marker := range comparisonMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range listMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Two or more distinct spec codes means a multi-entity question even
	// without explicit comparison wording.
	return len(q.Codes.ASTM)+len(q.Codes.API) >= 2
}

type decompositionPayload struct {
	Intent              string   `json:"intent"`
	SubQueries          []string `json:"subqueries"`
	RequiresAggregation bool     `json:"requires_aggregation"`
	Reasoning           string   `json:"reasoning"`
}

func parseDecomposition(raw string) (domain.Decomposition, error) {
	var payload decompositionPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.Decomposition{}, fmt.Errorf("unmarshal decomposition json: %w", err)
	}

	intent, ok := domain.ParseIntent(strings.ToLower(strings.TrimSpace(payload.Intent)))
	if !ok {
		return domain.Decomposition{}, fmt.Errorf("unknown intent: %q", payload.Intent)
	}

	subs := make([]string, 0, len(payload.SubQueries))
	for _, sq := range payload.SubQueries {
		sq = strings.TrimSpace(sq)
		if sq == "" {
			continue
		}
		subs = append(subs, sq)
		if len(subs) == maxSubQueries {
			break
		}
	}
	if len(subs) == 0 {
		return domain.Decomposition{}, fmt.Errorf("decomposition produced no subqueries")
	}

	reasoning := strings.TrimSpace(payload.Reasoning)
	if reasoning == "" {
		reasoning = "judge decomposition"
	}

	return domain.Decomposition{
		Intent:              intent,
		SubQueries:          subs,
		RequiresAggregation: payload.RequiresAggregation,
		Reasoning:           reasoning,
	}, nil
}

// extractJSONObject trims judge chatter around the outermost JSON object.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
