package usecase

import (
	"context"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const lowOverallConfidence = 55

// ConfidenceAggregator fuses the per-stage scores and, when the overall
// score lands low with budget remaining, drives one last regeneration
// steered at the weakest sub-score. The regenerated answer is rejected if
// it reads as a refusal; grounding is recomputed against accepted text.
type ConfidenceAggregator struct {
	judge ports.JudgeClient
}

func NewConfidenceAggregator(judge ports.JudgeClient) *ConfidenceAggregator {
	return &ConfidenceAggregator{judge: judge}
}

func (a *ConfidenceAggregator) Aggregate(
	ctx context.Context,
	question, answerText string,
	chunks []domain.Chunk,
	retrieval int,
	grounding domain.GroundingResult,
	coherence domain.CoherenceResult,
	budget *domain.RegenerationBudget,
) (string, domain.ConfidenceScore) {
	score := domain.ConfidenceScore{
		Overall:   domain.OverallConfidence(retrieval, grounding.Score, coherence.Score),
		Retrieval: domain.ClampScore(retrieval),
		Grounding: grounding.Score,
		Coherence: coherence.Score,
	}

	if score.Overall >= lowOverallConfidence || !budget.Spend() {
		return answerText, score
	}

	guidance := weakestGuidance(score)
	completion, err := a.judge.Complete(ctx, buildLowConfidenceRegenPrompt(question, chunks, guidance))
	if err != nil || strings.TrimSpace(completion.Text) == "" {
		return answerText, score
	}
	regenerated := completion.Text
	if IsRefusal(regenerated) {
		return answerText, score
	}

	rescored := GroundAgainstChunks(regenerated, chunks)
	score.Grounding = rescored.Score
	score.Overall = domain.OverallConfidence(score.Retrieval, score.Grounding, score.Coherence)
	return regenerated, score
}

func weakestGuidance(score domain.ConfidenceScore) string {
	weakest := score.Retrieval
	guidance := "extract any partial data that is relevant, even if incomplete"

	if score.Grounding < weakest {
		weakest = score.Grounding
		guidance = "quote exact values and units verbatim from the provided context"
	}
	if score.Coherence < weakest {
		guidance = "directly answer the question that was asked, point by point"
	}
	return guidance
}
