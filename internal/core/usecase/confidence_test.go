package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

func TestOverallConfidenceFormula(t *testing.T) {
	cases := []struct {
		retrieval, grounding, coherence int
		want                            int
	}{
		{100, 100, 100, 100},
		{0, 0, 0, 0},
		{80, 100, 70, 81},
		{50, 100, 70, 71}, // 70.5 rounds up
		{60, 40, 60, 55},
	}
	for _, tc := range cases {
		got := domain.OverallConfidence(tc.retrieval, tc.grounding, tc.coherence)
		if got != tc.want {
			t.Fatalf("OverallConfidence(%d, %d, %d) = %d, want %d",
				tc.retrieval, tc.grounding, tc.coherence, got, tc.want)
		}
	}
}

func TestAggregateConfidentAnswerUntouched(t *testing.T) {
	judge := &judgeStub{}
	aggregator := NewConfidenceAggregator(judge)
	budget := domain.NewRegenerationBudget(3)

	text, score := aggregator.Aggregate(context.Background(), "q", "answer", nil,
		80, domain.GroundingResult{Score: 90, Passed: true},
		domain.CoherenceResult{Score: 85, Passed: true}, budget)

	if text != "answer" || len(judge.completeCalls) != 0 {
		t.Fatal("confident answer was regenerated")
	}
	want := domain.OverallConfidence(80, 90, 85)
	if score.Overall != want {
		t.Fatalf("overall = %d, want %d", score.Overall, want)
	}
}

func TestAggregateRegeneratesLowConfidenceAnswer(t *testing.T) {
	chunks := []domain.Chunk{{Content: "minimum yield strength 65 ksi"}}
	judge := &judgeStub{
		completeFn: func(prompt string) (ports.Completion, error) {
			// Grounding is the weakest sub-score, so the guidance targets it.
			if !strings.Contains(prompt, "quote exact values and units verbatim") {
				t.Fatalf("guidance not aimed at grounding: %s", prompt)
			}
			return ports.Completion{Text: "The minimum yield strength is 65 ksi [1]."}, nil
		},
	}
	aggregator := NewConfidenceAggregator(judge)
	budget := domain.NewRegenerationBudget(3)

	text, score := aggregator.Aggregate(context.Background(), "q", "yield is 75 ksi", chunks,
		50, domain.GroundingResult{Score: 0},
		domain.CoherenceResult{Score: 60, Passed: true}, budget)

	if !strings.Contains(text, "65 ksi") {
		t.Fatalf("text = %q, want the regenerated answer", text)
	}
	// Grounding is rescored against the accepted text.
	if score.Grounding != 100 {
		t.Fatalf("grounding = %d, want 100 after rescore", score.Grounding)
	}
	if score.Overall != domain.OverallConfidence(50, 100, 60) {
		t.Fatalf("overall = %d not recomputed", score.Overall)
	}
	if budget.Used() != 1 {
		t.Fatalf("budget used = %d, want 1", budget.Used())
	}
}

func TestAggregateRejectsRefusingRegeneration(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: "I don't know, the context does not contain it."}, nil
		},
	}
	aggregator := NewConfidenceAggregator(judge)
	budget := domain.NewRegenerationBudget(3)

	original := "partial data: 65 ksi"
	text, score := aggregator.Aggregate(context.Background(), "q", original,
		[]domain.Chunk{{Content: "65 ksi"}},
		30, domain.GroundingResult{Score: 100, Passed: true},
		domain.CoherenceResult{Score: 40}, budget)

	if text != original {
		t.Fatalf("text = %q, a refusal replaced the answer", text)
	}
	if score.Grounding != 100 {
		t.Fatalf("grounding = %d, must not be rescored against rejected text", score.Grounding)
	}
}

func TestAggregateSkipsRegenerationWithoutBudget(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: "regenerated"}, nil
		},
	}
	aggregator := NewConfidenceAggregator(judge)
	budget := domain.NewRegenerationBudget(0)

	text, _ := aggregator.Aggregate(context.Background(), "q", "weak answer", nil,
		30, domain.GroundingResult{Score: 30},
		domain.CoherenceResult{Score: 30}, budget)

	if text != "weak answer" || len(judge.completeCalls) != 0 {
		t.Fatal("regeneration ran on an exhausted budget")
	}
}
