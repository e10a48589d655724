package usecase

import (
	"context"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const maxAntiRefusalAttempts = 2

// Relevance floor above which a refusal is treated as false: the sources
// plainly carry signal, so "not in the context" is a generation failure,
// not an honest miss.
const refusalSignalScore = 0.3

var fullRefusalPatterns = []string{
	"i don't know",
	"i do not know",
	"cannot find",
	"can't find",
	"could not find",
	"no information",
	"not available in the",
	"not present in the",
	"not provided in the",
	"the context does not",
	"the provided context does not",
	"unable to answer",
	"unable to determine",
	"does not contain",
}

var partialRefusalPatterns = []string{
	"however, the context",
	"however, the provided",
	"not specified in the",
	"is unclear from the",
	"it is unclear",
	"without more information",
	"may vary",
	"consult the full specification",
	"refer to the original",
}

type refusalKind int

const (
	refusalNone refusalKind = iota
	refusalPartial
	refusalFull
)

// RefusalDetector catches answers that refuse or hedge despite the
// retrieved chunks carrying the data, and regenerates within budget.
// Legitimate refusals, where the sources genuinely lack the answer, are
// left alone.
type RefusalDetector struct {
	judge ports.JudgeClient
}

func NewRefusalDetector(judge ports.JudgeClient) *RefusalDetector {
	return &RefusalDetector{judge: judge}
}

func (d *RefusalDetector) Check(
	ctx context.Context,
	question, answerText string,
	chunks []domain.Chunk,
	budget *domain.RegenerationBudget,
) string {
	switch classifyRefusal(answerText) {
	case refusalFull:
		if !hasRelevanceSignal(chunks) {
			return answerText
		}
		for attempt := 0; attempt < maxAntiRefusalAttempts; attempt++ {
			if !budget.Spend() {
				return answerText
			}
			completion, err := d.judge.Complete(ctx, buildAntiRefusalPrompt(question, chunks))
			if err != nil || strings.TrimSpace(completion.Text) == "" {
				return answerText
			}
			answerText = completion.Text
			if classifyRefusal(answerText) != refusalFull {
				return answerText
			}
		}
		return answerText
	case refusalPartial:
		if !budget.Spend() {
			return answerText
		}
		completion, err := d.judge.Complete(ctx, buildDehedgePrompt(question, answerText, chunks))
		if err != nil || strings.TrimSpace(completion.Text) == "" {
			return answerText
		}
		return completion.Text
	default:
		return answerText
	}
}

// IsRefusal reports whether text matches any full-refusal pattern. Used by
// the confidence aggregator to reject a final regeneration that itself
// refuses.
func IsRefusal(text string) bool {
	return classifyRefusal(text) == refusalFull
}

func classifyRefusal(text string) refusalKind {
	lower := strings.ToLower(text)
	for _, pattern := range fullRefusalPatterns {
		if strings.Contains(lower, pattern) {
			return refusalFull
		}
	}
	for _, pattern := range partialRefusalPatterns {
		if strings.Contains(lower, pattern) {
			return refusalPartial
		}
	}
	return refusalNone
}

func hasRelevanceSignal(chunks []domain.Chunk) bool {
	for _, chunk := range chunks {
		if chunk.BM25Score > 0 || chunk.CombinedScore > refusalSignalScore {
			return true
		}
	}
	return false
}
