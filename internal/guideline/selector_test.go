package guideline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCorpus(t *testing.T, records ...*Record) *Corpus {
	t.Helper()
	c, err := NewCorpus(records)
	require.NoError(t, err)
	return c
}

func TestSelector_Select_TierPartitioning(t *testing.T) {
	corpus := mustCorpus(t,
		&Record{ID: "crit-1", Tier: TierCritical, Instruction: "never promise results"},
		&Record{ID: "high-1", Tier: TierHigh, Instruction: "use short sentences"},
		&Record{ID: "med-1", Tier: TierMedium, Instruction: "mention timelines", Keywords: []string{"deadline"}},
		&Record{ID: "low-1", Tier: TierLow, Instruction: "reserved rule"},
	)

	selection := NewSelector().Select(corpus, &RequestContext{SubjectText: "project deadline review"})

	require.Len(t, selection.Critical, 1)
	require.Len(t, selection.High, 1)
	require.Len(t, selection.Contextual, 1)
	assert.Equal(t, "crit-1", selection.Critical[0].ID)
	assert.Equal(t, "med-1", selection.Contextual[0].ID)
	assert.Equal(t, 3, selection.Total())
}

func TestSelector_Select_CriticalAllCategories(t *testing.T) {
	// A critical record applicable to every category must be selected
	// whenever its other constraints hold, regardless of the category.
	corpus := mustCorpus(t, &Record{
		ID:            "crit-deadline",
		Tier:          TierCritical,
		Instruction:   "state deadlines explicitly",
		Keywords:      []string{"deadline"},
		Applicability: Applicability{Categories: []string{CategoryAll}},
	})

	rc := &RequestContext{SubjectText: "project deadline review", ContentCategory: "internal-memo"}
	selection := NewSelector().Select(corpus, rc)

	require.Len(t, selection.Critical, 1)
	assert.Equal(t, "crit-deadline", selection.Critical[0].ID)
	assert.GreaterOrEqual(t, selection.Critical[0].Relevance(rc.SubjectText), 2)
}

func TestSelector_Select_ContextualCap(t *testing.T) {
	records := make([]*Record, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, &Record{
			ID:          fmt.Sprintf("med-%d", i),
			Tier:        TierMedium,
			Instruction: "contextual rule",
			Keywords:    []string{"deadline"},
		})
	}
	corpus := mustCorpus(t, records...)

	selection := NewSelector().Select(corpus, &RequestContext{SubjectText: "project deadline review"})

	assert.Len(t, selection.Contextual, ContextualCap)
}

func TestSelector_Select_ContextualRequiresRelevance(t *testing.T) {
	corpus := mustCorpus(t,
		&Record{ID: "med-keyworded", Tier: TierMedium, Instruction: "r", Keywords: []string{"garden"}},
		&Record{ID: "med-bare", Tier: TierMedium, Instruction: "r"},
	)

	selection := NewSelector().Select(corpus, &RequestContext{SubjectText: "project deadline review"})

	assert.Empty(t, selection.Contextual)
}

func TestSelector_Select_ContextualOrdering(t *testing.T) {
	corpus := mustCorpus(t,
		&Record{ID: "b-strong", Tier: TierMedium, Instruction: "r", Keywords: []string{"deadline", "review"}},
		&Record{ID: "a-weak", Tier: TierMedium, Instruction: "r", Keywords: []string{"review"}},
		&Record{ID: "c-weak", Tier: TierMedium, Instruction: "r", Keywords: []string{"project"}},
	)

	selection := NewSelector().Select(corpus, &RequestContext{SubjectText: "project deadline review"})

	require.Len(t, selection.Contextual, 3)
	// Highest relevance first, then ID ascending among equals.
	assert.Equal(t, "b-strong", selection.Contextual[0].ID)
	assert.Equal(t, "a-weak", selection.Contextual[1].ID)
	assert.Equal(t, "c-weak", selection.Contextual[2].ID)
}

func TestSelector_Select_ApplicabilityFilter(t *testing.T) {
	corpus := mustCorpus(t,
		&Record{ID: "draft-only", Tier: TierHigh, Instruction: "r",
			Applicability: Applicability{Statuses: []string{"draft"}}},
		&Record{ID: "always", Tier: TierHigh, Instruction: "r"},
	)

	selection := NewSelector().Select(corpus, &RequestContext{SubjectText: "s", StatusFlag: "final"})

	require.Len(t, selection.High, 1)
	assert.Equal(t, "always", selection.High[0].ID)
}

func TestSelector_Select_EmptyInputs(t *testing.T) {
	t.Run("nil corpus", func(t *testing.T) {
		selection := NewSelector().Select(nil, &RequestContext{SubjectText: "s"})
		assert.Equal(t, 0, selection.Total())
	})

	t.Run("empty corpus", func(t *testing.T) {
		selection := NewSelector().Select(mustCorpus(t), &RequestContext{SubjectText: "s"})
		assert.Equal(t, 0, selection.Total())
	})

	t.Run("nil request", func(t *testing.T) {
		corpus := mustCorpus(t, &Record{ID: "crit", Tier: TierCritical, Instruction: "r"})
		selection := NewSelector().Select(corpus, nil)
		assert.Len(t, selection.Critical, 1)
	})
}

func TestSelector_SetContextualCap(t *testing.T) {
	corpus := mustCorpus(t,
		&Record{ID: "m1", Tier: TierMedium, Instruction: "r", Keywords: []string{"deadline"}},
		&Record{ID: "m2", Tier: TierMedium, Instruction: "r", Keywords: []string{"deadline"}},
	)

	s := NewSelector()
	s.SetContextualCap(1)
	selection := s.Select(corpus, &RequestContext{SubjectText: "deadline"})
	assert.Len(t, selection.Contextual, 1)

	s.SetContextualCap(-5)
	selection = s.Select(corpus, &RequestContext{SubjectText: "deadline"})
	assert.Empty(t, selection.Contextual)
}

func TestAssembler_Assemble(t *testing.T) {
	selection := &Selection{
		Critical: []*Record{
			{ID: "c1", Tier: TierCritical, Instruction: "never promise results",
				ShortForm: "no promised results",
				Examples:  []ExamplePair{{Bad: "guaranteed win", Good: "strong track record"}}},
		},
		High: []*Record{
			{ID: "h1", Tier: TierHigh, Instruction: "use short sentences"},
		},
		Contextual: []*Record{
			{ID: "m1", Tier: TierMedium, Instruction: "mention timelines"},
		},
	}

	blocks := NewAssembler().Assemble(selection, &RequestContext{SubjectText: "s"})

	assert.Contains(t, blocks.Lead, "- never promise results")
	assert.Contains(t, blocks.Lead, "Bad: guaranteed win")
	assert.Contains(t, blocks.Lead, "Good: strong track record")

	// High precedes contextual inside the trailing block.
	assert.Contains(t, blocks.Trail, "- use short sentences")
	assert.Contains(t, blocks.Trail, "- mention timelines")
	assert.Less(t,
		indexOf(t, blocks.Trail, "use short sentences"),
		indexOf(t, blocks.Trail, "mention timelines"))

	assert.Contains(t, blocks.Recap, "Before finishing, verify the text follows these rules:")
	assert.Contains(t, blocks.Recap, "- no promised results")
	assert.NotContains(t, blocks.Recap, "use short sentences")
}

func TestAssembler_Assemble_Empty(t *testing.T) {
	blocks := NewAssembler().Assemble(&Selection{}, nil)
	assert.Empty(t, blocks.Lead)
	assert.Empty(t, blocks.Trail)
	assert.Empty(t, blocks.Recap)

	blocks = NewAssembler().Assemble(nil, nil)
	assert.Empty(t, blocks.Lead)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q in %q", needle, haystack)
	return idx
}
