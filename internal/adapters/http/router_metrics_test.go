package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/observability/metrics"
)

func TestAskPopulatesPipelineSeries(t *testing.T) {
	serverMetrics := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(
		askFake{answer: &domain.Answer{
			Text:       "Yield strength is 65 ksi [1].",
			Sources:    []domain.Source{{Ref: 1, Document: "A790.pdf", Page: 12}},
			Confidence: domain.ConfidenceScore{Overall: 78, Retrieval: 80, Grounding: 100, Coherence: 65},
			Stats: domain.AnswerStats{
				RetrievalRetries: 1,
				Regenerations:    2,
				RerankFallback:   true,
				StageDurations: map[string]time.Duration{
					"retrieve": 120 * time.Millisecond,
					"generate": 900 * time.Millisecond,
				},
			},
		}},
		ingestFake{},
		readerFake{},
		serverMetrics,
		RouterConfig{Service: "api"},
	).Handler()

	res := postAsk(t, handler, "what is the yield strength of S32205 per A790?")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	scrape := httptest.NewRecorder()
	serverMetrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()

	for _, want := range []string{
		`sqa_retrieval_retries_sum{service="api"} 1`,
		`sqa_ask_requests_total{service="api",status="ok"} 1`,
		`sqa_answer_regenerations_sum{service="api"} 2`,
		`sqa_pipeline_stage_duration_seconds_count{service="api",stage="retrieve"} 1`,
		`sqa_pipeline_stage_duration_seconds_count{service="api",stage="generate"} 1`,
		`sqa_judge_fallbacks_total{service="api",stage="rerank"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q\n%s", want, body)
		}
	}
}
