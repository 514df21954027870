package guideline

import (
	"fmt"
	"strings"

	"adscribe/internal/logging"
)

// PromptBlocks is the assembled instruction text for one request, split
// by prompt placement. Lead goes at the very start of the generation
// prompt (models weight early instructions most reliably), Trail after
// the body template, and Recap at the absolute end as a condensed
// restatement of the critical rules.
type PromptBlocks struct {
	Lead  string
	Trail string
	Recap string
}

// Assembler formats a selection into prompt blocks. Formatting is
// deterministic string concatenation; the assembler never calls a model.
type Assembler struct {
	recordSeparator string
}

// NewAssembler creates an assembler with default formatting.
func NewAssembler() *Assembler {
	return &Assembler{recordSeparator: "\n\n"}
}

// Assemble turns a selection into placement blocks. An empty selection
// yields empty blocks.
func (a *Assembler) Assemble(selection *Selection, rc *RequestContext) *PromptBlocks {
	timer := logging.StartTimer(logging.CategorySelection, "Assembler.Assemble")
	defer timer.Stop()

	blocks := &PromptBlocks{}
	if selection == nil {
		return blocks
	}

	blocks.Lead = a.formatRecords(selection.Critical)

	// High before contextual preserves the tier ordering inside the
	// trailing block.
	trailing := make([]*Record, 0, len(selection.High)+len(selection.Contextual))
	trailing = append(trailing, selection.High...)
	trailing = append(trailing, selection.Contextual...)
	blocks.Trail = a.formatRecords(trailing)

	blocks.Recap = a.formatRecap(selection.Critical)

	logging.Get(logging.CategorySelection).Debug(
		"Assembled blocks: lead=%d chars, trail=%d chars, recap=%d chars",
		len(blocks.Lead), len(blocks.Trail), len(blocks.Recap),
	)

	return blocks
}

// formatRecords renders records as instruction lines with optional
// bad/good example pairs.
func (a *Assembler) formatRecords(records []*Record) string {
	if len(records) == 0 {
		return ""
	}

	parts := make([]string, 0, len(records))
	for _, r := range records {
		var b strings.Builder
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r.Instruction))

		for _, ex := range r.Examples {
			b.WriteString(fmt.Sprintf("\n  Bad: %s\n  Good: %s", ex.Bad, ex.Good))
		}

		parts = append(parts, b.String())
	}

	return strings.Join(parts, a.recordSeparator)
}

// formatRecap renders the single-pass restatement of critical rules for
// the absolute end of the prompt.
func (a *Assembler) formatRecap(critical []*Record) string {
	if len(critical) == 0 {
		return ""
	}

	lines := make([]string, 0, len(critical)+1)
	lines = append(lines, "Before finishing, verify the text follows these rules:")
	for _, r := range critical {
		lines = append(lines, "- "+strings.TrimSpace(r.RecapText()))
	}

	return strings.Join(lines, "\n")
}
