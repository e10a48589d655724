package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

func TestValidatePassingAnswerUntouched(t *testing.T) {
	judge := &judgeStub{
		completeJSONFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: `{"score":85,"missing_aspects":""}`}, nil
		},
	}
	validator := NewCoherenceValidator(judge)
	budget := domain.NewRegenerationBudget(3)

	text, result := validator.Validate(context.Background(), "q", "direct answer", nil, budget)

	if text != "direct answer" || !result.Passed || result.Score != 85 {
		t.Fatalf("text = %q, result = %+v", text, result)
	}
	if budget.Used() != 0 {
		t.Fatalf("budget used = %d, want 0", budget.Used())
	}
}

func TestValidateRegeneratesWithMissingAspects(t *testing.T) {
	scored := 0
	judge := &judgeStub{
		completeJSONFn: func(string) (ports.Completion, error) {
			scored++
			if scored == 1 {
				return ports.Completion{Text: `{"score":40,"missing_aspects":"the heat treatment condition"}`}, nil
			}
			return ports.Completion{Text: `{"score":80,"missing_aspects":""}`}, nil
		},
		completeFn: func(prompt string) (ports.Completion, error) {
			if !strings.Contains(prompt, "the heat treatment condition") {
				t.Fatalf("regeneration prompt missing judge guidance: %s", prompt)
			}
			return ports.Completion{Text: "Solution annealed at 1900 F minimum [1]."}, nil
		},
	}
	validator := NewCoherenceValidator(judge)
	budget := domain.NewRegenerationBudget(3)

	text, result := validator.Validate(context.Background(), "q", "vague answer", nil, budget)

	if !result.Passed || result.Score != 80 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(text, "Solution annealed") {
		t.Fatalf("text = %q, want the regenerated answer", text)
	}
	if budget.Used() != 1 {
		t.Fatalf("budget used = %d, want 1", budget.Used())
	}
}

func TestValidateStopsWhenBudgetExhausted(t *testing.T) {
	judge := &judgeStub{
		completeJSONFn: func(string) (ports.Completion, error) {
			return ports.Completion{Text: `{"score":20,"missing_aspects":"everything"}`}, nil
		},
	}
	validator := NewCoherenceValidator(judge)
	budget := domain.NewRegenerationBudget(0)

	text, result := validator.Validate(context.Background(), "q", "bad answer", nil, budget)

	if text != "bad answer" || result.Passed || result.Score != 20 {
		t.Fatalf("text = %q, result = %+v", text, result)
	}
	if len(judge.completeCalls) != 0 {
		t.Fatal("regeneration ran on an exhausted budget")
	}
}

func TestValidateAssumesPassOnJudgeFailure(t *testing.T) {
	validator := NewCoherenceValidator(&judgeStub{})
	budget := domain.NewRegenerationBudget(3)

	text, result := validator.Validate(context.Background(), "q", "answer", nil, budget)

	if text != "answer" || !result.Passed || result.Score != coherenceFallback {
		t.Fatalf("text = %q, result = %+v", text, result)
	}
}
