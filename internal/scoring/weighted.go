package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"adscribe/internal/guideline"
)

// Weighted criteria each contribute earned/max toward the normalized
// score. They are evaluated in severity order; that order also ranks the
// suggestions the scorer keeps.

// =============================================================================
// REQUIRED TERM PLACEMENT
// =============================================================================

// termCriterion checks that every required term appears early enough and
// within the configured occurrence band.
//
// Per term: 2 points for an occurrence count inside [minCount, maxCount]
// (1 point when the term is present but outside the band), plus 1 point
// when the first occurrence falls within the early-position window.
type termCriterion struct {
	window   int
	minCount int
	maxCount int
}

func (termCriterion) Name() string { return "required_terms" }

func (c termCriterion) Evaluate(candidate string, rc *guideline.RequestContext) CriterionResult {
	terms := requiredTerms(rc)
	if len(terms) == 0 {
		return CriterionResult{Earned: 1, Max: 1}
	}

	lower := strings.ToLower(candidate)
	window := c.window
	if len(lower) < window {
		window = len(lower)
	}

	earned, max := 0, 0
	var suggestion string
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		count := strings.Count(lower, lowerTerm)
		max += 3

		switch {
		case count >= c.minCount && count <= c.maxCount:
			earned += 2
		case count > 0:
			earned++
			if suggestion == "" {
				if count < c.minCount {
					suggestion = fmt.Sprintf("mention %q at least %d times; found only %d", term, c.minCount, count)
				} else {
					suggestion = fmt.Sprintf("mention %q at most %d times; found %d", term, c.maxCount, count)
				}
			}
		default:
			if suggestion == "" {
				suggestion = fmt.Sprintf("the text never mentions the required term %q", term)
			}
		}

		if idx := strings.Index(lower, lowerTerm); idx >= 0 && idx < window {
			earned++
		} else if suggestion == "" {
			suggestion = fmt.Sprintf("introduce %q within the first %d characters", term, c.window)
		}
	}

	res := CriterionResult{Earned: earned, Max: max}
	if earned < max {
		res.Suggestion = suggestion
	}
	return res
}

func requiredTerms(rc *guideline.RequestContext) []string {
	if rc == nil {
		return nil
	}
	terms := make([]string, 0, len(rc.RequiredTerms))
	for _, t := range rc.RequiredTerms {
		if strings.TrimSpace(t) != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// =============================================================================
// LENGTH FIT
// =============================================================================

// lengthFitCriterion scores how close the candidate is to the target
// length. The absolute bounds are hard-fail territory; this criterion
// grades the band in between.
type lengthFitCriterion struct {
	tolerance float64
	weight    int
}

func (lengthFitCriterion) Name() string { return "length_fit" }

func (c lengthFitCriterion) Evaluate(candidate string, rc *guideline.RequestContext) CriterionResult {
	target := 0
	if rc != nil {
		target = rc.TargetLength
	}
	if target <= 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	n := len([]rune(candidate))
	deviation := float64(n-target) / float64(target)
	if deviation < 0 {
		deviation = -deviation
	}

	switch {
	case deviation <= c.tolerance:
		return CriterionResult{Earned: c.weight, Max: c.weight}
	case deviation <= 2*c.tolerance:
		return CriterionResult{
			Earned:     c.weight / 2,
			Max:        c.weight,
			Suggestion: fmt.Sprintf("adjust the length toward %d characters; currently %d", target, n),
		}
	default:
		return CriterionResult{
			Max:        c.weight,
			Suggestion: fmt.Sprintf("the text is far from the target length of %d characters (currently %d)", target, n),
		}
	}
}

// =============================================================================
// FACTUAL FIGURES
// =============================================================================

// figurePattern matches numeric tokens that read as cited figures.
var figurePattern = regexp.MustCompile(`\d[\d.,]*`)

// figureCriterion verifies that every cited figure appears in the
// supplied allow-list. Without an allow-list the criterion is skipped
// (full credit): the caller opted out of figure checking.
type figureCriterion struct {
	allowed []string
	weight  int
}

func (figureCriterion) Name() string { return "allowed_figures" }

func (c figureCriterion) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if len(c.allowed) == 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	figures := figurePattern.FindAllString(candidate, -1)
	if len(figures) == 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	allowed := make(map[string]bool, len(c.allowed))
	for _, a := range c.allowed {
		allowed[normalizeFigure(a)] = true
	}

	ok := 0
	var offender string
	for _, f := range figures {
		if allowed[normalizeFigure(f)] {
			ok++
		} else if offender == "" {
			offender = f
		}
	}

	earned := c.weight * ok / len(figures)
	res := CriterionResult{Earned: earned, Max: c.weight}
	if offender != "" {
		res.Suggestion = fmt.Sprintf("the figure %q is not in the approved list; cite only supplied figures", offender)
	}
	return res
}

func normalizeFigure(f string) string {
	return strings.Trim(strings.ReplaceAll(f, ",", ""), ".")
}

// =============================================================================
// SUBJECT RELEVANCE
// =============================================================================

// relevanceCriterion measures keyword overlap between the subject text
// and the candidate.
type relevanceCriterion struct {
	weight int
}

func (relevanceCriterion) Name() string { return "subject_relevance" }

func (c relevanceCriterion) Evaluate(candidate string, rc *guideline.RequestContext) CriterionResult {
	subject := ""
	if rc != nil {
		subject = rc.SubjectText
	}

	subjectTokens := substantiveTokens(subject)
	if len(subjectTokens) == 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	candidateSet := make(map[string]bool)
	for _, t := range substantiveTokens(candidate) {
		candidateSet[t] = true
	}

	matched := 0
	for _, t := range subjectTokens {
		if candidateSet[t] {
			matched++
		}
	}

	earned := c.weight * matched / len(subjectTokens)
	res := CriterionResult{Earned: earned, Max: c.weight}
	if earned < c.weight {
		res.Suggestion = "work more of the subject's key terms into the text"
	}
	return res
}

// substantiveTokens lowercases, strips punctuation, and keeps tokens of
// four or more characters. Duplicates are preserved for subject tokens so
// repeated subject terms weigh more.
func substantiveTokens(text string) []string {
	var tokens []string
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		t := strings.TrimFunc(raw, func(r rune) bool {
			return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
		})
		if len(t) >= 4 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// =============================================================================
// FORBIDDEN PHRASES
// =============================================================================

// forbiddenPhraseCriterion penalizes phrases the selected guideline
// records prohibit.
type forbiddenPhraseCriterion struct {
	phrases []string
	weight  int
}

func (forbiddenPhraseCriterion) Name() string { return "forbidden_phrases" }

func (c forbiddenPhraseCriterion) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	if len(c.phrases) == 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	lower := strings.ToLower(candidate)
	hits := 0
	var offender string
	for _, p := range c.phrases {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			hits++
			if offender == "" {
				offender = p
			}
		}
	}

	if hits == 0 {
		return CriterionResult{Earned: c.weight, Max: c.weight}
	}

	earned := c.weight - c.weight*hits/len(c.phrases) - 1
	if earned < 0 {
		earned = 0
	}
	return CriterionResult{
		Earned:     earned,
		Max:        c.weight,
		Suggestion: fmt.Sprintf("remove the prohibited phrase %q", offender),
	}
}

// =============================================================================
// STYLE
// =============================================================================

// styleCriterion awards bonus points for persuasive rhetorical patterns
// and penalizes raw information density above the configured threshold of
// distinct substantive tokens.
type styleCriterion struct {
	densityThreshold int
	weight           int
}

func (styleCriterion) Name() string { return "style" }

func (c styleCriterion) Evaluate(candidate string, _ *guideline.RequestContext) CriterionResult {
	lower := strings.ToLower(candidate)

	bonus := 0
	// Direct address pulls the reader in.
	if strings.Contains(lower, "you ") || strings.Contains(lower, "your ") {
		bonus++
	}
	// A rhetorical question engages.
	if strings.Contains(candidate, "?") {
		bonus++
	}
	// An invitation or call to action closes persuasive copy.
	for _, marker := range []string{"discover", "imagine", "experience", "don't miss", "contact"} {
		if strings.Contains(lower, marker) {
			bonus++
			break
		}
	}

	distinct := make(map[string]bool)
	for _, t := range substantiveTokens(candidate) {
		distinct[t] = true
	}

	penalty := 0
	if len(distinct) > c.densityThreshold {
		penalty = (len(distinct) - c.densityThreshold) / 20
	}

	earned := c.weight * bonus / 3
	earned -= penalty
	if earned < 0 {
		earned = 0
	}
	if earned > c.weight {
		earned = c.weight
	}

	res := CriterionResult{Earned: earned, Max: c.weight}
	if penalty > 0 {
		res.Suggestion = "reduce the raw fact density; favor fewer, better-developed points"
	} else if earned < c.weight {
		res.Suggestion = "add persuasive devices: address the reader directly or close with an invitation"
	}
	return res
}
