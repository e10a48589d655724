package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	acceptConfidence     = 60
	maxRetrievalRetries  = 2
	defaultRetryDeadline = 25 * time.Second
)

// RetrievalEvaluator asks the judge whether the chunk set can answer the
// question. Judge failure assumes a relevant set at confidence 50.
type RetrievalEvaluator struct {
	judge ports.JudgeClient
}

func NewRetrievalEvaluator(judge ports.JudgeClient) *RetrievalEvaluator {
	return &RetrievalEvaluator{judge: judge}
}

type evaluationPayload struct {
	IsRelevant        bool   `json:"is_relevant"`
	Confidence        int    `json:"confidence"`
	Reason            string `json:"reason"`
	SuggestedStrategy string `json:"suggested_strategy"`
}

func (e *RetrievalEvaluator) Evaluate(ctx context.Context, question string, chunks []domain.Chunk) domain.Evaluation {
	fallback := domain.Evaluation{
		IsRelevant: true,
		Confidence: 50,
		Reason:     "evaluator unavailable",
	}

	completion, err := e.judge.CompleteJSON(ctx, buildEvaluationPrompt(question, chunks))
	if err != nil {
		return fallback
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(extractJSONObject(completion.Text)), &payload); err != nil {
		return fallback
	}

	return domain.Evaluation{
		IsRelevant:        payload.IsRelevant,
		Confidence:        domain.ClampScore(payload.Confidence),
		Reason:            strings.TrimSpace(payload.Reason),
		SuggestedStrategy: parseRetryStrategy(payload.SuggestedStrategy),
	}
}

func parseRetryStrategy(raw string) domain.RetryStrategy {
	switch domain.RetryStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.RetryBroaderSearch:
		return domain.RetryBroaderSearch
	case domain.RetrySectionLookup:
		return domain.RetrySectionLookup
	case domain.RetryMoreCandidates:
		return domain.RetryMoreCandidates
	default:
		return domain.RetryNone
	}
}

type retryState int

const (
	stateEvaluated retryState = iota
	stateRetrying
	stateAccepted
	stateExhausted
)

var strategyRotation = []domain.RetryStrategy{
	domain.RetrySectionLookup,
	domain.RetryBroaderSearch,
	domain.RetryMoreCandidates,
}

// RetryController re-searches with an untried strategy while retrieval
// confidence stays under the acceptance threshold. It never repeats a
// strategy, keeps a retry's chunk set only on strict confidence
// improvement, and is bounded both by attempt count and a wall-clock
// budget measured from pipeline start.
type RetryController struct {
	retriever  *HybridRetriever
	reranker   *Reranker
	evaluator  *RetrievalEvaluator
	maxRetries int
	deadline   time.Duration
	candidateK int
	topK       int
}

func NewRetryController(
	retriever *HybridRetriever,
	reranker *Reranker,
	evaluator *RetrievalEvaluator,
	candidateK, topK int,
	deadline time.Duration,
) *RetryController {
	if deadline <= 0 {
		deadline = defaultRetryDeadline
	}
	return &RetryController{
		retriever:  retriever,
		reranker:   reranker,
		evaluator:  evaluator,
		maxRetries: maxRetrievalRetries,
		deadline:   deadline,
		candidateK: candidateK,
		topK:       topK,
	}
}

type retryOutcome struct {
	Chunks     []domain.Chunk
	Evaluation domain.Evaluation
	Retries    int
	Strategies []domain.RetryStrategy
}

func (c *RetryController) Run(
	ctx context.Context,
	q domain.Query,
	dec domain.Decomposition,
	filter domain.DocumentFilter,
	chunks []domain.Chunk,
	eval domain.Evaluation,
	pipelineStart time.Time,
) retryOutcome {
	out := retryOutcome{Chunks: chunks, Evaluation: eval}
	state := stateEvaluated
	tried := make(map[domain.RetryStrategy]struct{}, c.maxRetries)

	for {
		switch state {
		case stateEvaluated:
			switch {
			case out.Evaluation.Confidence >= acceptConfidence || len(out.Chunks) == 0:
				state = stateAccepted
			case out.Retries >= c.maxRetries || time.Since(pipelineStart) >= c.deadline || ctx.Err() != nil:
				state = stateExhausted
			default:
				state = stateRetrying
			}
		case stateRetrying:
			strategy := c.pickStrategy(out.Evaluation.SuggestedStrategy, tried)
			if strategy == domain.RetryNone {
				state = stateExhausted
				continue
			}
			tried[strategy] = struct{}{}
			out.Retries++
			out.Strategies = append(out.Strategies, strategy)

			retryChunks := c.searchWithStrategy(ctx, strategy, q, dec, filter)
			if len(retryChunks) > 0 {
				reranked, _ := c.reranker.Rerank(ctx, q.Cleaned, dec.SubQueries, retryChunks, c.topK)
				retryEval := c.evaluator.Evaluate(ctx, q.Cleaned, reranked)
				if retryEval.Confidence > out.Evaluation.Confidence {
					out.Chunks = reranked
					out.Evaluation = retryEval
				}
			}
			state = stateEvaluated
		case stateAccepted, stateExhausted:
			return out
		}
	}
}

func (c *RetryController) pickStrategy(suggested domain.RetryStrategy, tried map[domain.RetryStrategy]struct{}) domain.RetryStrategy {
	if suggested != domain.RetryNone {
		if _, done := tried[suggested]; !done {
			return suggested
		}
	}
	for _, strategy := range strategyRotation {
		if _, done := tried[strategy]; !done {
			return strategy
		}
	}
	return domain.RetryNone
}

func (c *RetryController) searchWithStrategy(
	ctx context.Context,
	strategy domain.RetryStrategy,
	q domain.Query,
	dec domain.Decomposition,
	filter domain.DocumentFilter,
) []domain.Chunk {
	switch strategy {
	case domain.RetrySectionLookup:
		terms := sectionTerms(q)
		sets := make([][]domain.Chunk, 0, len(dec.SubQueries))
		for _, sq := range dec.SubQueries {
			chunks, err := c.retriever.Search(ctx, ports.SearchRequest{
				Query:        sq + " " + strings.Join(terms, " "),
				K:            c.candidateK,
				Filter:       filter,
				Weights:      q.Weights,
				SectionTerms: terms,
			})
			if err != nil {
				continue
			}
			sets = append(sets, chunks)
		}
		return MergeCandidates(sets...)
	case domain.RetryBroaderSearch:
		// Widen and drop the document filter entirely.
		chunks, err := c.retriever.Search(ctx, ports.SearchRequest{
			Query:   q.Cleaned,
			K:       c.candidateK * 2,
			Weights: defaultWeights,
		})
		if err != nil {
			return nil
		}
		return chunks
	case domain.RetryMoreCandidates:
		sets := make([][]domain.Chunk, 0, len(dec.SubQueries))
		for _, sq := range dec.SubQueries {
			chunks, err := c.retriever.Search(ctx, ports.SearchRequest{
				Query:   sq,
				K:       c.candidateK * 2,
				Filter:  filter,
				Weights: q.Weights,
			})
			if err != nil {
				continue
			}
			sets = append(sets, chunks)
		}
		return MergeCandidates(sets...)
	default:
		return nil
	}
}

func sectionTerms(q domain.Query) []string {
	if len(q.Codes.SectionRefs) > 0 {
		terms := make([]string, 0, len(q.Codes.SectionRefs)*2)
		for _, ref := range q.Codes.SectionRefs {
			terms = append(terms, "section "+ref, "table "+ref)
		}
		return terms
	}
	return []string{"table", "section", "requirements"}
}
