// Package scoring implements the candidate quality scorer for adscribe.
// Scoring is a pure function of (candidate text, request context) plus
// static configuration; it never calls the generation model.
//
// Criteria come in two classes:
//   - hard-fail checks, which run first and zero the entire result when
//     they trigger
//   - weighted criteria, which each contribute earned/max points toward
//     the normalized 0-100 score
package scoring

import (
	"adscribe/internal/guideline"
)

// CriterionResult is the outcome of one criterion evaluation.
type CriterionResult struct {
	// Earned points, 0 <= Earned <= Max
	Earned int

	// Max points this criterion can contribute
	Max int

	// HardFail zeroes the whole score when true
	HardFail bool

	// Suggestion is a natural-language improvement hint, set only when
	// the criterion did not earn full credit
	Suggestion string
}

// Criterion evaluates one quality dimension of a candidate text.
type Criterion interface {
	// Name identifies the criterion in the score breakdown.
	Name() string

	// Evaluate scores the candidate. Implementations must be pure.
	Evaluate(candidate string, rc *guideline.RequestContext) CriterionResult
}

// Status values for the per-criterion breakdown.
const (
	StatusPass    = "pass"
	StatusPartial = "partial"
	StatusFail    = "fail"
)

// CriterionScore is one row of the score breakdown.
type CriterionScore struct {
	Earned int    `json:"earned"`
	Max    int    `json:"max"`
	Status string `json:"status"`
}

func statusFor(earned, max int) string {
	switch {
	case earned >= max:
		return StatusPass
	case earned > 0:
		return StatusPartial
	default:
		return StatusFail
	}
}

// Config holds the static scoring thresholds. Zero values fall back to
// the defaults below.
type Config struct {
	// Absolute bounds; violating either is a hard fail
	MaxLength int
	MinLength int

	// Full length credit inside TargetLength*(1 +/- LengthTolerance)
	LengthTolerance float64

	// Required terms must first appear within this many characters
	TermWindow int

	// Per-term occurrence band [TermMinCount, TermMaxCount]
	TermMinCount int
	TermMaxCount int

	// Allow-list of literal tokens that may be cited as figures
	AllowedFigures []string

	// Phrases the candidate must avoid (collected from the selected
	// guideline records)
	ForbiddenPhrases []string

	// Distinct substantive tokens above which the density penalty kicks in
	DensityThreshold int

	// Score at or above which the result is marked passed
	PassThreshold int
}

// Defaults mirroring the production copy rules.
const (
	DefaultMaxLength        = 6000
	DefaultMinLength        = 200
	DefaultLengthTolerance  = 0.20
	DefaultTermWindow       = 500
	DefaultTermMinCount     = 2
	DefaultTermMaxCount     = 5
	DefaultDensityThreshold = 180
	DefaultPassThreshold    = 70
)

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.MaxLength == 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.MinLength == 0 {
		c.MinLength = DefaultMinLength
	}
	if c.LengthTolerance == 0 {
		c.LengthTolerance = DefaultLengthTolerance
	}
	if c.TermWindow == 0 {
		c.TermWindow = DefaultTermWindow
	}
	if c.TermMinCount == 0 {
		c.TermMinCount = DefaultTermMinCount
	}
	if c.TermMaxCount == 0 {
		c.TermMaxCount = DefaultTermMaxCount
	}
	if c.DensityThreshold == 0 {
		c.DensityThreshold = DefaultDensityThreshold
	}
	if c.PassThreshold == 0 {
		c.PassThreshold = DefaultPassThreshold
	}
	return c
}
