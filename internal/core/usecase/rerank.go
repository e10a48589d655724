package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	rerankContentBudget = 500
	rerankMinScore      = 4.0
)

// Reranker scores candidates 0-10 with a single batched judge call.
// Judge failure is never fatal: the fallback is combined-score ordering.
type Reranker struct {
	judge ports.JudgeClient
}

func NewReranker(judge ports.JudgeClient) *Reranker {
	return &Reranker{judge: judge}
}

type rerankVerdict struct {
	Index  int     `json:"index"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type rerankPayload struct {
	Scores []rerankVerdict `json:"scores"`
}

// Rerank returns the top-K candidates by judged relevance, filtering out
// chunks under the minimum score unless that would empty the set. The
// second return reports whether judged scores were actually applied.
func (r *Reranker) Rerank(ctx context.Context, question string, subQueries []string, candidates []domain.Chunk, topK int) ([]domain.Chunk, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	completion, err := r.judge.CompleteJSON(ctx, buildRerankPrompt(question, subQueries, candidates))
	if err != nil {
		return fallbackByCombinedScore(candidates, topK), false
	}

	scores, ok := parseRerankScores(completion.Text, len(candidates))
	if !ok {
		return fallbackByCombinedScore(candidates, topK), false
	}

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, chunk := range candidates {
		ranked[i] = scored{chunk: chunk, score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	kept := make([]domain.Chunk, 0, topK)
	for _, s := range ranked {
		if s.score < rerankMinScore {
			continue
		}
		kept = append(kept, s.chunk)
		if len(kept) == topK {
			break
		}
	}
	// Waive the threshold rather than returning nothing to rank.
	if len(kept) == 0 {
		for i := 0; i < topK; i++ {
			kept = append(kept, ranked[i].chunk)
		}
	}
	return kept, true
}

func parseRerankScores(raw string, count int) ([]float64, bool) {
	var payload rerankPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, false
	}

	scores := make([]float64, count)
	filled := make([]bool, count)
	for _, verdict := range payload.Scores {
		if verdict.Index < 0 || verdict.Index >= count {
			continue
		}
		score := verdict.Score
		if score < 0 {
			score = 0
		}
		if score > 10 {
			score = 10
		}
		scores[verdict.Index] = score
		filled[verdict.Index] = true
	}
	for _, ok := range filled {
		if !ok {
			return nil, false
		}
	}
	return scores, true
}

func fallbackByCombinedScore(candidates []domain.Chunk, topK int) []domain.Chunk {
	out := make([]domain.Chunk, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	if topK < len(out) {
		out = out[:topK]
	}
	return out
}

func truncateContent(content string, budget int) string {
	content = strings.TrimSpace(content)
	if len(content) <= budget {
		return content
	}
	// Back off to a rune boundary so a multi-byte character at the cut
	// point (degree signs in temperature values) is dropped, not split.
	cut := budget
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
