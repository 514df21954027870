// Package prompting holds the prompt builders composed into pipeline
// stages. Builders are pure formatting functions from (blocks, request
// context) to text; all retry and feedback logic lives in the pipeline
// controller.
package prompting

import (
	"fmt"
	"strings"

	"adscribe/internal/guideline"
	"adscribe/internal/pipeline"
)

// Stage names used by the standard two-stage pipeline.
const (
	StageBody  = "body"
	StageTitle = "title"
)

// BodyPrompt returns a builder for the main copy stage. Critical rules
// lead the prompt, high/contextual rules trail the body template, and
// the recap closes it, so the highest-priority rules appear both first
// and last.
func BodyPrompt(blocks *guideline.PromptBlocks) pipeline.PromptBuilder {
	return func(rc *guideline.RequestContext) string {
		var b strings.Builder

		if blocks.Lead != "" {
			b.WriteString("Follow these rules without exception:\n")
			b.WriteString(blocks.Lead)
			b.WriteString("\n\n")
		}

		b.WriteString("Write persuasive long-form copy about the following subject.\n")
		b.WriteString("Subject:\n")
		b.WriteString(rc.SubjectText)
		b.WriteString("\n")

		if rc.TargetLength > 0 {
			b.WriteString(fmt.Sprintf("\nAim for roughly %d characters of flowing prose.\n", rc.TargetLength))
		}

		if len(rc.RequiredTerms) > 0 {
			b.WriteString("\nWeave in each of these terms naturally: ")
			b.WriteString(strings.Join(rc.RequiredTerms, ", "))
			b.WriteString(".\n")
		}

		if blocks.Trail != "" {
			b.WriteString("\nAlso respect these guidelines:\n")
			b.WriteString(blocks.Trail)
			b.WriteString("\n")
		}

		if blocks.Recap != "" {
			b.WriteString("\n")
			b.WriteString(blocks.Recap)
			b.WriteString("\n")
		}

		return b.String()
	}
}

// TitlePrompt returns a builder for the titling stage. It reads the body
// stage's output from the request context's prior stage outputs.
func TitlePrompt(blocks *guideline.PromptBlocks) pipeline.PromptBuilder {
	return func(rc *guideline.RequestContext) string {
		var b strings.Builder

		if blocks.Lead != "" {
			b.WriteString("Follow these rules without exception:\n")
			b.WriteString(blocks.Lead)
			b.WriteString("\n\n")
		}

		b.WriteString("Write a single compelling title for the copy below. ")
		b.WriteString("Return only the title, no quotes or commentary.\n\n")

		body := rc.PriorOutput(StageBody)
		if body != "" {
			b.WriteString("Copy:\n")
			b.WriteString(body)
			b.WriteString("\n")
		} else {
			// Body stage produced nothing usable; title from the subject.
			b.WriteString("Subject:\n")
			b.WriteString(rc.SubjectText)
			b.WriteString("\n")
		}

		if blocks.Recap != "" {
			b.WriteString("\n")
			b.WriteString(blocks.Recap)
			b.WriteString("\n")
		}

		return b.String()
	}
}
