package guideline

import "fmt"

// RequestContext carries everything the selector, scorer, and prompt
// builders need to know about one generation request. It is built once
// per external request and treated as read-only for the duration of a
// pipeline run; stages receive copies, never the original.
type RequestContext struct {
	// SubjectText is the free-text subject the copy is about
	// (e.g. property description notes, product brief).
	SubjectText string

	// ContentCategory classifies the copy (e.g. "residential", "commercial").
	ContentCategory string

	// GenerationMethod selects the production flavor (e.g. "standard", "express").
	GenerationMethod string

	// StatusFlag carries the request's workflow status (e.g. "draft", "renewal").
	StatusFlag string

	// TargetLength is the desired candidate length in characters.
	TargetLength int

	// RequiredTerms must each appear in the candidate within the
	// configured frequency band.
	RequiredTerms []string

	// PriorStageOutputs holds the accepted (or best-effort) text of
	// earlier pipeline stages, keyed by stage name.
	PriorStageOutputs map[string]string
}

// Validate checks the context for values that would make a run meaningless.
func (rc *RequestContext) Validate() error {
	if rc.SubjectText == "" {
		return fmt.Errorf("subject text is required")
	}
	if rc.TargetLength < 0 {
		return fmt.Errorf("target length must not be negative, got %d", rc.TargetLength)
	}
	return nil
}

// Clone returns a deep copy. Pipeline stages mutate only their own copy's
// PriorStageOutputs, so concurrent runs never share mutable state.
func (rc *RequestContext) Clone() *RequestContext {
	clone := *rc

	clone.RequiredTerms = copyStringSlice(rc.RequiredTerms)

	if rc.PriorStageOutputs != nil {
		clone.PriorStageOutputs = make(map[string]string, len(rc.PriorStageOutputs))
		for k, v := range rc.PriorStageOutputs {
			clone.PriorStageOutputs[k] = v
		}
	}

	return &clone
}

// PriorOutput returns the output of an earlier stage, or "" if absent.
func (rc *RequestContext) PriorOutput(stage string) string {
	if rc.PriorStageOutputs == nil {
		return ""
	}
	return rc.PriorStageOutputs[stage]
}
