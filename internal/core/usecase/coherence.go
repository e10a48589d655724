package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	coherencePassScore   = 60
	coherenceFallback    = 70
	maxCoherenceAttempts = 2
)

// CoherenceValidator asks the judge whether the answer actually addresses
// the question, regenerating with the judge's missing-aspects guidance on
// failure. Judge failure assumes a pass at the fallback score.
type CoherenceValidator struct {
	judge ports.JudgeClient
}

func NewCoherenceValidator(judge ports.JudgeClient) *CoherenceValidator {
	return &CoherenceValidator{judge: judge}
}

type coherencePayload struct {
	Score          int    `json:"score"`
	MissingAspects string `json:"missing_aspects"`
}

func (v *CoherenceValidator) Validate(
	ctx context.Context,
	question, answerText string,
	chunks []domain.Chunk,
	budget *domain.RegenerationBudget,
) (string, domain.CoherenceResult) {
	result := v.score(ctx, question, answerText)

	for attempt := 1; !result.Passed && attempt < maxCoherenceAttempts; attempt++ {
		if !budget.Spend() {
			break
		}
		guidance := strings.TrimSpace(result.MissingAspects)
		if guidance == "" {
			guidance = "extract more relevant detail from the provided context and answer the question directly"
		}
		completion, err := v.judge.Complete(ctx, buildCoherenceRegenPrompt(question, chunks, guidance))
		if err != nil || strings.TrimSpace(completion.Text) == "" {
			break
		}
		answerText = completion.Text
		result = v.score(ctx, question, answerText)
	}

	return answerText, result
}

func (v *CoherenceValidator) score(ctx context.Context, question, answerText string) domain.CoherenceResult {
	fallback := domain.CoherenceResult{Score: coherenceFallback, Passed: true}

	completion, err := v.judge.CompleteJSON(ctx, buildCoherencePrompt(question, answerText))
	if err != nil {
		return fallback
	}

	var payload coherencePayload
	if err := json.Unmarshal([]byte(extractJSONObject(completion.Text)), &payload); err != nil {
		return fallback
	}

	score := domain.ClampScore(payload.Score)
	return domain.CoherenceResult{
		Score:          score,
		Passed:         score >= coherencePassScore,
		MissingAspects: strings.TrimSpace(payload.MissingAspects),
	}
}
