package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"adscribe/internal/guideline"
)

// Hard-fail checks catch structural red flags that make a candidate
// unusable regardless of its other qualities. They run before the
// weighted criteria and short-circuit the scorer.

// ellipsisCheck rejects candidates containing an ellipsis marker, the
// signature of a truncated or evasive completion.
type ellipsisCheck struct{}

func (ellipsisCheck) Name() string { return "no_ellipsis" }

func (ellipsisCheck) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if strings.Contains(candidate, "...") || strings.Contains(candidate, "…") {
		return CriterionResult{
			HardFail:   true,
			Suggestion: "remove ellipsis markers; write complete sentences instead of trailing off",
		}
	}
	return CriterionResult{Earned: 1, Max: 1}
}

// markupPattern matches markdown-style structure the copy channel cannot
// render: headings, list bullets, numbered lists, bold markers.
var markupPattern = regexp.MustCompile(`(?m)^\s*(#{1,6}\s|[-*]\s|\d+\.\s)|\*\*`)

// formattingCheck rejects candidates that resemble disallowed formatting.
type formattingCheck struct{}

func (formattingCheck) Name() string { return "no_markup" }

func (formattingCheck) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if markupPattern.MatchString(candidate) {
		return CriterionResult{
			HardFail:   true,
			Suggestion: "remove headings, bullets, and markup; produce plain flowing prose",
		}
	}
	return CriterionResult{Earned: 1, Max: 1}
}

// lengthCeilingCheck rejects candidates beyond the absolute maximum length.
type lengthCeilingCheck struct {
	maxLength int
}

func (lengthCeilingCheck) Name() string { return "length_ceiling" }

func (c lengthCeilingCheck) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if n := len([]rune(candidate)); n > c.maxLength {
		return CriterionResult{
			HardFail:   true,
			Suggestion: fmt.Sprintf("text is %d characters, above the absolute ceiling of %d; cut it down substantially", n, c.maxLength),
		}
	}
	return CriterionResult{Earned: 1, Max: 1}
}

// lengthFloorCheck rejects candidates below the absolute minimum length.
type lengthFloorCheck struct {
	minLength int
}

func (lengthFloorCheck) Name() string { return "length_floor" }

func (c lengthFloorCheck) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if n := len([]rune(strings.TrimSpace(candidate))); n < c.minLength {
		return CriterionResult{
			HardFail:   true,
			Suggestion: fmt.Sprintf("text is only %d characters, below the absolute floor of %d; write substantially more", n, c.minLength),
		}
	}
	return CriterionResult{Earned: 1, Max: 1}
}
