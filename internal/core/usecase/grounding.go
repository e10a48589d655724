package usecase

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	groundingPassScore = 50
	groundingTolerance = 0.01
)

// Matches unit-bearing values and ranges: "65 ksi", "485 MPa",
// "30-35 ksi", "22.5%", "1 1/2 in".
var numericClaimRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?(?:\s+\d/\d)?)(?:\s*[-–]\s*(\d+(?:\.\d+)?))?\s*(ksi|mpa|psi|gpa|hrc|hbw|hb|hv|%|°\s?[cf]|mm|cm|in(?:ch(?:es)?)?\.?|bar)\b`)

// GroundingVerifier checks that every numeric claim in the generated
// answer is traceable to the retrieved chunks within an absolute
// tolerance. A failing score triggers exactly one regeneration that
// forbids the ungrounded values.
type GroundingVerifier struct {
	judge ports.JudgeClient
}

func NewGroundingVerifier(judge ports.JudgeClient) *GroundingVerifier {
	return &GroundingVerifier{judge: judge}
}

// Verify scores the answer and, when the score is under the pass mark and
// budget remains, regenerates once and rescores against the new text.
// Returns the (possibly regenerated) answer text and the final result.
func (g *GroundingVerifier) Verify(
	ctx context.Context,
	question, answerText string,
	chunks []domain.Chunk,
	budget *domain.RegenerationBudget,
) (string, domain.GroundingResult) {
	result := GroundAgainstChunks(answerText, chunks)
	if result.Passed || len(result.Ungrounded) == 0 {
		return answerText, result
	}
	if !budget.Spend() {
		return answerText, result
	}

	completion, err := g.judge.Complete(ctx, buildGroundingRegenPrompt(question, answerText, chunks, result.Ungrounded))
	if err != nil || strings.TrimSpace(completion.Text) == "" {
		return answerText, result
	}

	regenerated := completion.Text
	rescored := GroundAgainstChunks(regenerated, chunks)
	return regenerated, rescored
}

// GroundAgainstChunks extracts numeric claims from the answer and marks
// each grounded when any chunk carries a matching value within tolerance.
// An answer with no numeric claims scores 100.
func GroundAgainstChunks(answerText string, chunks []domain.Chunk) domain.GroundingResult {
	claims := ExtractNumericClaims(answerText)
	if len(claims) == 0 {
		return domain.GroundingResult{Score: 100, Passed: true}
	}

	sourceClaims := make([]domain.NumericClaim, 0, len(chunks)*4)
	for _, chunk := range chunks {
		sourceClaims = append(sourceClaims, ExtractNumericClaims(chunk.Content)...)
	}

	grounded := 0
	var ungrounded []domain.NumericClaim
	for _, claim := range claims {
		if isGrounded(claim, sourceClaims) {
			grounded++
			continue
		}
		ungrounded = append(ungrounded, claim)
	}

	score := int(math.Round(100 * float64(grounded) / float64(len(claims))))
	return domain.GroundingResult{
		Score:      domain.ClampScore(score),
		Passed:     score >= groundingPassScore,
		Ungrounded: ungrounded,
	}
}

// ExtractNumericClaims pulls value+unit claims out of text. Ranges produce
// one claim per bound so "30-35 ksi" grounds both endpoints.
func ExtractNumericClaims(text string) []domain.NumericClaim {
	matches := numericClaimRe.FindAllStringSubmatch(text, -1)
	out := make([]domain.NumericClaim, 0, len(matches))
	for _, m := range matches {
		unit := normalizeUnit(m[3])
		low, ok := parseClaimValue(m[1])
		if !ok {
			continue
		}
		out = append(out, domain.NumericClaim{Value: low, Unit: unit, Original: strings.TrimSpace(m[0])})
		if m[2] != "" {
			if high, ok := parseClaimValue(m[2]); ok {
				out = append(out, domain.NumericClaim{Value: high, Unit: unit, Original: strings.TrimSpace(m[0])})
			}
		}
	}
	return out
}

func parseClaimValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	// Mixed fractions like "1 1/2".
	if parts := strings.Fields(raw); len(parts) == 2 && strings.Contains(parts[1], "/") {
		whole, err1 := strconv.ParseFloat(parts[0], 64)
		num, den, found := strings.Cut(parts[1], "/")
		if !found || err1 != nil {
			return 0, false
		}
		n, err2 := strconv.ParseFloat(num, 64)
		d, err3 := strconv.ParseFloat(den, 64)
		if err2 != nil || err3 != nil || d == 0 {
			return 0, false
		}
		return whole + n/d, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeUnit(unit string) string {
	unit = strings.ToLower(strings.ReplaceAll(unit, " ", ""))
	unit = strings.TrimSuffix(unit, ".")
	switch unit {
	case "inch", "inches":
		return "in"
	case "hb":
		return "hbw"
	default:
		return unit
	}
}

func isGrounded(claim domain.NumericClaim, sources []domain.NumericClaim) bool {
	for _, source := range sources {
		if source.Unit != claim.Unit {
			continue
		}
		if math.Abs(source.Value-claim.Value) <= groundingTolerance {
			return true
		}
	}
	return false
}
