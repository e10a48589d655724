package usecase

import (
	"context"
	"testing"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

func relevantChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", Content: "S32205 minimum yield strength 65 ksi", BM25Score: 0.8, CombinedScore: 0.7},
	}
}

func TestCheckRegeneratesFalseRefusal(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: "The minimum yield strength is 65 ksi [1]."}, nil
		},
	}
	detector := NewRefusalDetector(judge)
	budget := domain.NewRegenerationBudget(3)

	text := detector.Check(context.Background(), "yield strength?",
		"The provided context does not contain this information.", relevantChunks(), budget)

	if text != "The minimum yield strength is 65 ksi [1]." {
		t.Fatalf("text = %q, want the regenerated answer", text)
	}
	if budget.Used() != 1 {
		t.Fatalf("budget used = %d, want 1", budget.Used())
	}
}

func TestCheckLeavesLegitimateRefusalAlone(t *testing.T) {
	judge := &judgeStub{}
	detector := NewRefusalDetector(judge)
	budget := domain.NewRegenerationBudget(3)

	// Zero-signal chunks: the refusal is honest.
	weak := []domain.Chunk{{ID: "c1", Content: "unrelated", BM25Score: 0, CombinedScore: 0.1}}
	refusal := "I don't know, the context does not cover this."

	text := detector.Check(context.Background(), "q", refusal, weak, budget)

	if text != refusal || budget.Used() != 0 {
		t.Fatalf("legitimate refusal was rewritten: %q (budget %d)", text, budget.Used())
	}
}

func TestCheckStopsAfterRepeatedRefusals(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			// The model keeps refusing even when pushed.
			return ports.Completion{Text: "I cannot find that value in the context."}, nil
		},
	}
	detector := NewRefusalDetector(judge)
	budget := domain.NewRegenerationBudget(5)

	detector.Check(context.Background(), "q", "I don't know.", relevantChunks(), budget)

	if len(judge.completeCalls) != maxAntiRefusalAttempts {
		t.Fatalf("regenerations = %d, want %d", len(judge.completeCalls), maxAntiRefusalAttempts)
	}
}

func TestCheckDehedgesPartialRefusal(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: "Yield strength is 65 ksi [1]; exact tolerances need the full table."}, nil
		},
	}
	detector := NewRefusalDetector(judge)
	budget := domain.NewRegenerationBudget(3)

	hedged := "Yield strength may vary; consult the full specification for details."
	text := detector.Check(context.Background(), "q", hedged, relevantChunks(), budget)

	if text == hedged || budget.Used() != 1 {
		t.Fatalf("partial refusal not dehedged: %q (budget %d)", text, budget.Used())
	}
}

func TestCheckRespectsExhaustedBudget(t *testing.T) {
	judge := &judgeStub{
		completeFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: "regenerated"}, nil
		},
	}
	detector := NewRefusalDetector(judge)
	budget := domain.NewRegenerationBudget(0)

	refusal := "I don't know."
	text := detector.Check(context.Background(), "q", refusal, relevantChunks(), budget)

	if text != refusal || len(judge.completeCalls) != 0 {
		t.Fatal("regeneration ran on an exhausted budget")
	}
}

func TestIsRefusal(t *testing.T) {
	if !IsRefusal("Unable to determine the value from the context.") {
		t.Fatal("full refusal not detected")
	}
	if IsRefusal("The minimum yield strength is 65 ksi.") {
		t.Fatal("direct answer classified as refusal")
	}
}
