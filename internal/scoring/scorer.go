package scoring

import (
	"math"

	"adscribe/internal/guideline"
	"adscribe/internal/logging"
)

// MaxSuggestions bounds how many improvement hints a result carries.
const MaxSuggestions = 3

// Result is the outcome of scoring one candidate. Results are created
// per candidate and retained only inside the controller's attempt
// history.
type Result struct {
	// Score is the normalized 0-100 quality score.
	Score int `json:"score"`

	// Breakdown maps criterion name to its earned/max/status row.
	Breakdown map[string]CriterionScore `json:"breakdown"`

	// Passed is true when Score reached the configured pass threshold
	// and no hard-fail triggered.
	Passed bool `json:"passed"`

	// Suggestions holds at most MaxSuggestions improvement hints,
	// ordered by criterion severity.
	Suggestions []string `json:"suggestions"`
}

// Scorer evaluates candidates against an ordered criteria list.
// Hard-fail checks always run first and short-circuit; weighted criteria
// are evaluated in severity order, which also ranks suggestions.
type Scorer struct {
	cfg      Config
	hard     []Criterion
	weighted []Criterion
}

// NewScorer builds a scorer for the given configuration.
func NewScorer(cfg Config) *Scorer {
	cfg = cfg.withDefaults()

	return &Scorer{
		cfg: cfg,
		hard: []Criterion{
			ellipsisCheck{},
			formattingCheck{},
			lengthCeilingCheck{maxLength: cfg.MaxLength},
			lengthFloorCheck{minLength: cfg.MinLength},
		},
		weighted: []Criterion{
			termCriterion{window: cfg.TermWindow, minCount: cfg.TermMinCount, maxCount: cfg.TermMaxCount},
			lengthFitCriterion{tolerance: cfg.LengthTolerance, weight: 20},
			figureCriterion{allowed: cfg.AllowedFigures, weight: 15},
			relevanceCriterion{weight: 20},
			forbiddenPhraseCriterion{phrases: cfg.ForbiddenPhrases, weight: 10},
			styleCriterion{densityThreshold: cfg.DensityThreshold, weight: 10},
		},
	}
}

// Score evaluates a candidate. Pure: identical inputs give identical
// results, and the generation model is never consulted.
func (s *Scorer) Score(candidate string, rc *guideline.RequestContext) *Result {
	timer := logging.StartTimer(logging.CategoryScoring, "Scorer.Score")
	defer timer.Stop()

	// Hard-fail checks short-circuit: any trigger zeroes the result
	// without evaluating the remaining criteria.
	for _, check := range s.hard {
		cr := check.Evaluate(candidate, rc)
		if cr.HardFail {
			logging.Get(logging.CategoryScoring).Info("Hard fail on %s", check.Name())
			return &Result{
				Score:  0,
				Passed: false,
				Breakdown: map[string]CriterionScore{
					check.Name(): {Earned: 0, Max: cr.Max, Status: StatusFail},
				},
				Suggestions: []string{cr.Suggestion},
			}
		}
	}

	result := &Result{Breakdown: make(map[string]CriterionScore, len(s.weighted))}

	earnedSum, maxSum := 0, 0
	for _, criterion := range s.weighted {
		cr := criterion.Evaluate(candidate, rc)
		earnedSum += cr.Earned
		maxSum += cr.Max

		result.Breakdown[criterion.Name()] = CriterionScore{
			Earned: cr.Earned,
			Max:    cr.Max,
			Status: statusFor(cr.Earned, cr.Max),
		}

		if cr.Suggestion != "" && len(result.Suggestions) < MaxSuggestions {
			result.Suggestions = append(result.Suggestions, cr.Suggestion)
		}
	}

	if maxSum > 0 {
		result.Score = int(math.Round(100 * float64(earnedSum) / float64(maxSum)))
	}
	result.Passed = result.Score >= s.cfg.PassThreshold

	logging.Get(logging.CategoryScoring).Debug(
		"Scored candidate: %d/100 (passed=%v, %d suggestions)",
		result.Score, result.Passed, len(result.Suggestions),
	)

	return result
}

// ForbiddenPhrasesFromSelection collects the forbidden phrases of all
// selected guideline records, for feeding into Config.
func ForbiddenPhrasesFromSelection(sel *guideline.Selection) []string {
	if sel == nil {
		return nil
	}

	var phrases []string
	appendFrom := func(records []*guideline.Record) {
		for _, r := range records {
			phrases = append(phrases, r.ForbiddenPhrases...)
		}
	}
	appendFrom(sel.Critical)
	appendFrom(sel.High)
	appendFrom(sel.Contextual)
	return phrases
}
