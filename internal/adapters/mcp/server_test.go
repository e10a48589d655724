package mcpadapter

import (
	"context"
	"strings"
	"testing"

	"github.com/akazantsev/specqa/internal/core/domain"
)

type askStub struct {
	answer *domain.Answer
	err    error
}

func (s askStub) Ask(context.Context, string) (*domain.Answer, error) {
	return s.answer, s.err
}

func TestRenderAnswerIncludesSourcesAndConfidence(t *testing.T) {
	rendered := renderAnswer(&domain.Answer{
		Text: "Minimum yield strength is 65 ksi [1].",
		Sources: []domain.Source{
			{Ref: 1, Document: "A790.pdf", Page: 12},
			{Ref: 2, Document: "notes.txt"},
		},
		Confidence: domain.ConfidenceScore{Overall: 78, Retrieval: 80, Grounding: 100, Coherence: 65},
	})

	if !strings.Contains(rendered, "[1] A790.pdf, page 12") {
		t.Fatalf("expected paged source line, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[2] notes.txt") {
		t.Fatalf("expected pageless source line, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Confidence: 78/100") {
		t.Fatalf("expected confidence line, got:\n%s", rendered)
	}
}

func TestNewServerRegistersAskTool(t *testing.T) {
	s := NewServer(askStub{answer: &domain.Answer{Text: "ok"}}, "test")
	if s.mcpServer == nil {
		t.Fatalf("expected configured mcp server")
	}
}
