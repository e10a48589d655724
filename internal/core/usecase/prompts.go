package usecase

import (
	"fmt"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
)

func buildDecompositionPrompt(question string) string {
	return fmt.Sprintf(`You split technical questions about material specifications into targeted sub-queries.
Return ONLY a valid JSON object:
{"intent":"lookup|compare|list|explain|verify","subqueries":["..."],"requires_aggregation":false,"reasoning":"..."}

Rules:
- Comparison questions get one sub-query per compared entity.
- List questions get one sub-query per listed aspect, at most 4.
- Keep spec codes (e.g. A790, S32205, API 5CT) verbatim inside sub-queries.

Question:
%s`, question)
}

func buildRerankPrompt(question string, subQueries []string, candidates []domain.Chunk) string {
	var b strings.Builder
	for i, chunk := range candidates {
		fmt.Fprintf(&b, "[%d] (%s p.%d) %s\n", i, chunk.Filename, chunk.PageNumber, truncateContent(chunk.Content, rerankContentBudget))
	}

	subQueryBlock := "(none)"
	if len(subQueries) > 1 {
		subQueryBlock = "- " + strings.Join(subQueries, "\n- ")
	}

	return fmt.Sprintf(`You judge the relevance of retrieved specification excerpts to a question.
Score each candidate 0-10 (10 = directly answers the question).
Return ONLY a valid JSON object:
{"scores":[{"index":0,"score":7,"reason":"..."}, ...]}
Include every candidate index exactly once.

Question:
%s

Sub-queries:
%s

Candidates:
%s`, question, subQueryBlock, b.String())
}

func buildEvaluationPrompt(question string, chunks []domain.Chunk) string {
	return fmt.Sprintf(`You judge whether retrieved specification excerpts are sufficient to answer a question.
Return ONLY a valid JSON object:
{"is_relevant":true,"confidence":0,"reason":"...","suggested_strategy":"broader_search|section_lookup|more_candidates|null"}
confidence is 0-100. Suggest a strategy only when the excerpts fall short:
- section_lookup: the answer likely sits in a specific numbered section or table.
- broader_search: the excerpts look off-topic, widen the net.
- more_candidates: the excerpts are on-topic but incomplete.

Question:
%s

Excerpts:
%s`, question, contextBlock(chunks))
}

func buildAnswerPrompt(question string, chunks []domain.Chunk) string {
	return fmt.Sprintf(`You are an expert material science and steel engineer.
Use the numbered context excerpts to answer the question.
Cite the excerpt you used for each fact as [n]. Quote numeric values and units exactly as written in the context.
If the context does not contain the answer, say that you don't know.
Use technical language but be concise.

Context:
%s

Question: %s`, contextBlock(chunks), question)
}

func buildGroundingRegenPrompt(question, answerText string, chunks []domain.Chunk, ungrounded []domain.NumericClaim) string {
	forbidden := make([]string, 0, len(ungrounded))
	for _, claim := range ungrounded {
		forbidden = append(forbidden, claim.Original)
	}

	return fmt.Sprintf(`You are an expert material science and steel engineer.
Your previous answer contained values that do not appear in the context: %s.
Rewrite the answer using ONLY values quoted exactly from the numbered context excerpts, cited as [n].
Do not use any of the forbidden values above. If a value is not in the context, omit it.

Context:
%s

Question: %s

Previous answer:
%s`, strings.Join(forbidden, ", "), contextBlock(chunks), question, answerText)
}

func buildAntiRefusalPrompt(question string, chunks []domain.Chunk) string {
	return fmt.Sprintf(`You are an expert material science and steel engineer.
The numbered context excerpts below DO contain information relevant to the question.
Answer the question using that information, citing excerpts as [n]. Do not say the information is missing.
Quote numeric values and units exactly as written.

Context:
%s

Question: %s`, contextBlock(chunks), question)
}

func buildDehedgePrompt(question, answerText string, chunks []domain.Chunk) string {
	return fmt.Sprintf(`You are an expert material science and steel engineer.
Rewrite the answer below to lead with the data that IS available in the context, cited as [n].
Move caveats and qualifications to a short final sentence. Do not drop any cited values.

Context:
%s

Question: %s

Answer to rewrite:
%s`, contextBlock(chunks), question, answerText)
}

func buildCoherencePrompt(question, answerText string) string {
	return fmt.Sprintf(`You judge whether an answer addresses the question that was asked.
Return ONLY a valid JSON object:
{"score":0,"missing_aspects":"..."}
score is 0-100 (100 = fully addresses every part of the question).
missing_aspects names what the answer skipped, empty when nothing is missing.

Question:
%s

Answer:
%s`, question, answerText)
}

func buildCoherenceRegenPrompt(question string, chunks []domain.Chunk, guidance string) string {
	return fmt.Sprintf(`You are an expert material science and steel engineer.
Answer the question using the numbered context excerpts, cited as [n].
Pay particular attention to: %s.
Quote numeric values and units exactly as written. Be concise.

Context:
%s

Question: %s`, guidance, contextBlock(chunks), question)
}

func buildLowConfidenceRegenPrompt(question string, chunks []domain.Chunk, guidance string) string {
	return fmt.Sprintf(`You are an expert material science and steel engineer.
Rewrite your answer to the question below. Guidance: %s.
Use the numbered context excerpts, cited as [n]. Quote numeric values and units exactly as written.

Context:
%s

Question: %s`, guidance, contextBlock(chunks), question)
}

func contextBlock(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return "(no context retrieved)"
	}
	var b strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s, page %d:\n%s\n\n", i+1, chunk.Filename, chunk.PageNumber, strings.TrimSpace(chunk.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
