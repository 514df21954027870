// Package guideline implements the writing-guideline corpus for adscribe.
// Guidelines are stored as small, conditionally-applicable records that are
// selected per request, ranked by topical relevance, and assembled into
// placement blocks for the generation prompt.
//
// The pipeline through this package:
// 1. Load - records are parsed from YAML (or a compiled SQLite store)
// 2. Select - records are filtered by applicability and ranked by relevance
// 3. Assemble - selected records become lead/trail/recap prompt blocks
package guideline

import (
	"fmt"
	"strings"
)

// Tier is the priority tier of a guideline record.
// Tiers drive placement: critical records lead the prompt, high and
// contextual (medium) records trail it, low records are reserved.
type Tier string

const (
	// TierCritical records are always included when applicable and placed
	// at the very start of the prompt.
	TierCritical Tier = "critical"

	// TierHigh records are always included when applicable and placed
	// after the body template.
	TierHigh Tier = "high"

	// TierMedium records compete for a small number of contextual slots
	// based on topical relevance.
	TierMedium Tier = "medium"

	// TierLow records are loaded but never selected beyond the contextual
	// slots; reserved for future use.
	TierLow Tier = "low"
)

// AllTiers returns all defined priority tiers, highest first.
func AllTiers() []Tier {
	return []Tier{TierCritical, TierHigh, TierMedium, TierLow}
}

// CategoryAll is the sentinel category meaning "applies to every content
// category".
const CategoryAll = "all"

// Applicability defines WHEN a record applies to a request.
// Each dimension is a set of accepted values; an empty dimension imposes
// no constraint. A record matches only if every non-empty dimension
// accepts the request's value.
type Applicability struct {
	// Statuses: request status flags (e.g. "draft", "renewal", "urgent")
	Statuses []string `yaml:"statuses,omitempty" json:"statuses,omitempty"`

	// Categories: content categories, or the single value "all"
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`

	// Methods: generation methods (e.g. "standard", "express")
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// ExamplePair is a bad/good rewrite demonstration attached to a record.
type ExamplePair struct {
	Bad  string `yaml:"bad" json:"bad"`
	Good string `yaml:"good" json:"good"`
}

// Record represents a single writing guideline.
// Records are immutable once loaded; the corpus cache hands out shared
// pointers and nothing downstream may mutate them.
type Record struct {
	// Unique identifier (e.g. "no-superlatives-v2")
	ID string `yaml:"id" json:"id"`

	// Priority tier controlling placement and selection
	Tier Tier `yaml:"tier" json:"tier"`

	// Applicability constraints; zero value matches every request
	Applicability Applicability `yaml:"applicability,omitempty" json:"applicability,omitempty"`

	// Topical keywords used for relevance ranking against the subject text
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// The full instruction text inserted into prompts
	Instruction string `yaml:"instruction" json:"instruction"`

	// Compact restatement used in the end-of-prompt recap (critical tier only).
	// Falls back to Instruction when empty.
	ShortForm string `yaml:"short_form,omitempty" json:"short_form,omitempty"`

	// Phrases the generated text must not contain
	ForbiddenPhrases []string `yaml:"forbidden_phrases,omitempty" json:"forbidden_phrases,omitempty"`

	// Bad/good rewrite examples appended after the instruction
	Examples []ExamplePair `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// Matches checks whether this record applies to the given request.
// Every non-empty applicability dimension must accept the request value;
// absent dimensions impose no constraint.
func (r *Record) Matches(rc *RequestContext) bool {
	if rc == nil {
		return true
	}

	if !matchDimension(r.Applicability.Statuses, rc.StatusFlag) {
		return false
	}

	if !matchCategories(r.Applicability.Categories, rc.ContentCategory) {
		return false
	}

	if !matchDimension(r.Applicability.Methods, rc.GenerationMethod) {
		return false
	}

	return true
}

// matchDimension checks if a value matches a constraint set.
// Empty constraint set means "match any". A constrained dimension never
// matches an empty request value.
func matchDimension(constraint []string, value string) bool {
	if len(constraint) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	for _, c := range constraint {
		if strings.EqualFold(c, value) {
			return true
		}
	}
	return false
}

// matchCategories is matchDimension plus the "all" sentinel.
func matchCategories(constraint []string, value string) bool {
	for _, c := range constraint {
		if c == CategoryAll {
			return true
		}
	}
	return matchDimension(constraint, value)
}

// Relevance computes the topical relevance of this record against a
// subject text. Scoring: +2 per keyword found as a case-insensitive
// substring of the subject, +1 per keyword sharing a whitespace-delimited
// token with the subject. Records without keywords always score zero.
func (r *Record) Relevance(subject string) int {
	if len(r.Keywords) == 0 || subject == "" {
		return 0
	}

	lowerSubject := strings.ToLower(subject)
	subjectTokens := strings.Fields(lowerSubject)

	score := 0
	for _, kw := range r.Keywords {
		lowerKw := strings.ToLower(strings.TrimSpace(kw))
		if lowerKw == "" {
			continue
		}

		if strings.Contains(lowerSubject, lowerKw) {
			score += 2
		}

		if keywordSharesToken(lowerKw, subjectTokens) {
			score++
		}
	}

	return score
}

// keywordSharesToken reports whether any token of the keyword equals any
// token of the subject.
func keywordSharesToken(lowerKw string, subjectTokens []string) bool {
	for _, kt := range strings.Fields(lowerKw) {
		for _, st := range subjectTokens {
			if kt == st {
				return true
			}
		}
	}
	return false
}

// RecapText returns the compact restatement for the end-of-prompt recap.
func (r *Record) RecapText() string {
	if r.ShortForm != "" {
		return r.ShortForm
	}
	return r.Instruction
}

// Validate checks the record for consistency errors.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record ID is required")
	}

	if r.Instruction == "" {
		return fmt.Errorf("instruction is required for record %q", r.ID)
	}

	if r.Tier == "" {
		return fmt.Errorf("tier is required for record %q", r.ID)
	}

	validTier := false
	for _, t := range AllTiers() {
		if t == r.Tier {
			validTier = true
			break
		}
	}
	if !validTier {
		return fmt.Errorf("unknown tier %q for record %q", r.Tier, r.ID)
	}

	for _, ex := range r.Examples {
		if ex.Bad == "" || ex.Good == "" {
			return fmt.Errorf("example pair on record %q must have both bad and good text", r.ID)
		}
	}

	return nil
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r

	clone.Applicability.Statuses = copyStringSlice(r.Applicability.Statuses)
	clone.Applicability.Categories = copyStringSlice(r.Applicability.Categories)
	clone.Applicability.Methods = copyStringSlice(r.Applicability.Methods)
	clone.Keywords = copyStringSlice(r.Keywords)
	clone.ForbiddenPhrases = copyStringSlice(r.ForbiddenPhrases)

	if r.Examples != nil {
		clone.Examples = make([]ExamplePair, len(r.Examples))
		copy(clone.Examples, r.Examples)
	}

	return &clone
}

// copyStringSlice creates a deep copy of a string slice.
func copyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
