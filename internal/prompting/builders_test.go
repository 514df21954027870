package prompting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adscribe/internal/guideline"
)

func testBlocks() *guideline.PromptBlocks {
	return &guideline.PromptBlocks{
		Lead:  "- never promise results",
		Trail: "- use short sentences",
		Recap: "Before finishing, verify the text follows these rules:\n- no promised results",
	}
}

func TestBodyPrompt_Ordering(t *testing.T) {
	rc := &guideline.RequestContext{
		SubjectText:   "riverside apartment",
		TargetLength:  1500,
		RequiredTerms: []string{"Riverside Court", "open kitchen"},
	}

	prompt := BodyPrompt(testBlocks())(rc)

	leadIdx := strings.Index(prompt, "never promise results")
	subjectIdx := strings.Index(prompt, "riverside apartment")
	trailIdx := strings.Index(prompt, "use short sentences")
	recapIdx := strings.Index(prompt, "Before finishing")

	require.GreaterOrEqual(t, leadIdx, 0)
	require.GreaterOrEqual(t, subjectIdx, 0)
	require.GreaterOrEqual(t, trailIdx, 0)
	require.GreaterOrEqual(t, recapIdx, 0)

	// Critical rules first, subject and guidelines in between, recap last.
	assert.Less(t, leadIdx, subjectIdx)
	assert.Less(t, subjectIdx, trailIdx)
	assert.Less(t, trailIdx, recapIdx)

	assert.Contains(t, prompt, "roughly 1500 characters")
	assert.Contains(t, prompt, "Riverside Court, open kitchen")
}

func TestBodyPrompt_OptionalSections(t *testing.T) {
	rc := &guideline.RequestContext{SubjectText: "riverside apartment"}
	prompt := BodyPrompt(&guideline.PromptBlocks{})(rc)

	assert.NotContains(t, prompt, "Follow these rules")
	assert.NotContains(t, prompt, "Also respect")
	assert.NotContains(t, prompt, "roughly")
	assert.NotContains(t, prompt, "Weave in")
	assert.Contains(t, prompt, "riverside apartment")
}

func TestTitlePrompt_UsesBodyOutput(t *testing.T) {
	rc := &guideline.RequestContext{
		SubjectText:       "riverside apartment",
		PriorStageOutputs: map[string]string{StageBody: "the finished body copy"},
	}

	prompt := TitlePrompt(testBlocks())(rc)

	assert.Contains(t, prompt, "the finished body copy")
	assert.NotContains(t, prompt, "Subject:")
}

func TestTitlePrompt_FallsBackToSubject(t *testing.T) {
	rc := &guideline.RequestContext{SubjectText: "riverside apartment"}

	prompt := TitlePrompt(testBlocks())(rc)

	assert.Contains(t, prompt, "Subject:")
	assert.Contains(t, prompt, "riverside apartment")
}
