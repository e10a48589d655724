package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

// AskLimits bounds the pipeline's external calls and budgets.
type AskLimits struct {
	CandidateK      int
	TopK            int
	RegenerationMax int
	SearchTimeout   time.Duration
	JudgeTimeout    time.Duration
	GenerateTimeout time.Duration
	RetryDeadline   time.Duration
}

func (l AskLimits) normalize() AskLimits {
	if l.CandidateK <= 0 {
		l.CandidateK = 12
	}
	if l.TopK <= 0 {
		l.TopK = 6
	}
	if l.RegenerationMax <= 0 {
		l.RegenerationMax = 3
	}
	if l.SearchTimeout <= 0 {
		l.SearchTimeout = 10 * time.Second
	}
	if l.JudgeTimeout <= 0 {
		l.JudgeTimeout = 15 * time.Second
	}
	if l.GenerateTimeout <= 0 {
		l.GenerateTimeout = 45 * time.Second
	}
	if l.RetryDeadline <= 0 {
		l.RetryDeadline = defaultRetryDeadline
	}
	return l
}

// AskUseCase orchestrates the retrieval pipeline: analysis, resolution,
// decomposition, parallel hybrid retrieval, coverage repair, reranking,
// the evaluate/retry loop, generation, and the post-generation gates.
type AskUseCase struct {
	resolver   *DocumentResolver
	decomposer *QueryDecomposer
	retriever  *HybridRetriever
	reranker   *Reranker
	evaluator  *RetrievalEvaluator
	retry      *RetryController
	grounding  *GroundingVerifier
	refusal    *RefusalDetector
	coherence  *CoherenceValidator
	aggregator *ConfidenceAggregator
	generator  ports.JudgeClient
	limits     AskLimits
}

func NewAskUseCase(
	resolver *DocumentResolver,
	decomposer *QueryDecomposer,
	retriever *HybridRetriever,
	reranker *Reranker,
	evaluator *RetrievalEvaluator,
	grounding *GroundingVerifier,
	refusal *RefusalDetector,
	coherence *CoherenceValidator,
	aggregator *ConfidenceAggregator,
	generator ports.JudgeClient,
	limits AskLimits,
) *AskUseCase {
	limits = limits.normalize()
	return &AskUseCase{
		resolver:   resolver,
		decomposer: decomposer,
		retriever:  retriever,
		reranker:   reranker,
		evaluator:  evaluator,
		retry:      NewRetryController(retriever, reranker, evaluator, limits.CandidateK, limits.TopK, limits.RetryDeadline),
		grounding:  grounding,
		refusal:    refusal,
		coherence:  coherence,
		aggregator: aggregator,
		generator:  generator,
		limits:     limits,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}
	pipelineStart := time.Now()
	stageDurations := make(map[string]time.Duration, 4)

	q := AnalyzeQuery(question)
	filter := uc.resolver.Resolve(ctx, q.Codes, q.Raw)
	dec := uc.decompose(ctx, q)

	retrieveStart := time.Now()
	resultSets := uc.fanOutSearch(ctx, q, dec, filter)
	merged := MergeCandidates(resultSets...)
	counts := subqueryHitCounts(dec.SubQueries, resultSets)
	merged = RepairCoverage(ctx, uc.retriever, q, filter, counts, merged, uc.limits.CandidateK)
	stageDurations["retrieve"] = time.Since(retrieveStart)

	rerankStart := time.Now()
	reranked, judged := uc.rerank(ctx, q, dec, merged)
	reranked = BalanceAcrossDocuments(reranked, merged, filter)
	stageDurations["rerank"] = time.Since(rerankStart)

	evaluateStart := time.Now()
	eval := uc.evaluate(ctx, q, reranked)
	outcome := uc.retry.Run(ctx, q, dec, filter, reranked, eval, pipelineStart)
	chunks := outcome.Chunks
	stageDurations["evaluate"] = time.Since(evaluateStart)

	result := domain.RetrievalResult{
		Chunks:        chunks,
		Decomposition: dec,
		Metadata: domain.RetrievalMetadata{
			TotalCandidates: len(merged),
			PerSubquery:     counts,
			Reranked:        judged,
			DocumentFilter:  filter,
		},
		Confidence: outcome.Evaluation.Confidence,
	}

	generateStart := time.Now()
	text, err := uc.generate(ctx, q.Cleaned, chunks)
	if err != nil {
		return nil, err
	}
	stageDurations["generate"] = time.Since(generateStart)

	budget := domain.NewRegenerationBudget(uc.limits.RegenerationMax)

	verifyStart := time.Now()
	text, groundingResult := uc.grounding.Verify(ctx, q.Cleaned, text, chunks, budget)
	text = uc.refusal.Check(ctx, q.Cleaned, text, chunks, budget)
	text, coherenceResult := uc.coherence.Validate(ctx, q.Cleaned, text, chunks, budget)
	text, confidence := uc.aggregator.Aggregate(
		ctx, q.Cleaned, text, chunks,
		result.Confidence, groundingResult, coherenceResult, budget,
	)
	stageDurations["verify"] = time.Since(verifyStart)

	text, sources := RemapCitations(text, SourcesFromChunks(chunks))

	return &domain.Answer{
		Text:       text,
		Sources:    sources,
		Confidence: confidence,
		Stats: domain.AnswerStats{
			RetrievalRetries: outcome.Retries,
			Regenerations:    budget.Used(),
			RerankFallback:   !result.Metadata.Reranked,
			CandidatesMerged: result.Metadata.TotalCandidates,
			StageDurations:   stageDurations,
		},
	}, nil
}

func (uc *AskUseCase) decompose(ctx context.Context, q domain.Query) domain.Decomposition {
	judgeCtx, cancel := context.WithTimeout(ctx, uc.limits.JudgeTimeout)
	defer cancel()
	return uc.decomposer.Decompose(judgeCtx, q)
}

// fanOutSearch runs all sub-query searches concurrently and joins them.
// A failed sub-query contributes an empty set; coverage repair picks it up.
func (uc *AskUseCase) fanOutSearch(
	ctx context.Context,
	q domain.Query,
	dec domain.Decomposition,
	filter domain.DocumentFilter,
) [][]domain.Chunk {
	resultSets := make([][]domain.Chunk, len(dec.SubQueries))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, sq := range dec.SubQueries {
		group.Go(func() error {
			searchCtx, cancel := context.WithTimeout(groupCtx, uc.limits.SearchTimeout)
			defer cancel()
			chunks, err := uc.retriever.Search(searchCtx, ports.SearchRequest{
				Query:   sq,
				K:       uc.limits.CandidateK,
				Filter:  filter,
				Weights: q.Weights,
			})
			if err != nil {
				return nil
			}
			resultSets[i] = chunks
			return nil
		})
	}
	_ = group.Wait()
	return resultSets
}

func (uc *AskUseCase) rerank(ctx context.Context, q domain.Query, dec domain.Decomposition, merged []domain.Chunk) ([]domain.Chunk, bool) {
	judgeCtx, cancel := context.WithTimeout(ctx, uc.limits.JudgeTimeout)
	defer cancel()
	return uc.reranker.Rerank(judgeCtx, q.Cleaned, dec.SubQueries, merged, uc.limits.TopK)
}

func (uc *AskUseCase) evaluate(ctx context.Context, q domain.Query, chunks []domain.Chunk) domain.Evaluation {
	judgeCtx, cancel := context.WithTimeout(ctx, uc.limits.JudgeTimeout)
	defer cancel()
	return uc.evaluator.Evaluate(judgeCtx, q.Cleaned, chunks)
}

func (uc *AskUseCase) generate(ctx context.Context, question string, chunks []domain.Chunk) (string, error) {
	generateCtx, cancel := context.WithTimeout(ctx, uc.limits.GenerateTimeout)
	defer cancel()

	completion, err := uc.generator.Complete(generateCtx, buildAnswerPrompt(question, chunks))
	if err != nil {
		// The generation service already exhausted its own fallbacks; the
		// caller gets a generic failure without internal detail.
		return "", domain.WrapError(domain.ErrTemporary, "generate answer", err)
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", domain.WrapError(domain.ErrTemporary, "generate answer", fmt.Errorf("empty completion"))
	}
	return completion.Text, nil
}
