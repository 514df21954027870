package guideline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Matches(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		rc       *RequestContext
		expected bool
	}{
		{
			name:     "no constraints matches anything",
			record:   Record{ID: "r1"},
			rc:       &RequestContext{ContentCategory: "residential", StatusFlag: "draft"},
			expected: true,
		},
		{
			name:     "nil context matches",
			record:   Record{ID: "r1", Applicability: Applicability{Statuses: []string{"draft"}}},
			rc:       nil,
			expected: true,
		},
		{
			name:     "status constraint satisfied",
			record:   Record{ID: "r1", Applicability: Applicability{Statuses: []string{"draft", "renewal"}}},
			rc:       &RequestContext{StatusFlag: "renewal"},
			expected: true,
		},
		{
			name:     "status constraint violated",
			record:   Record{ID: "r1", Applicability: Applicability{Statuses: []string{"draft"}}},
			rc:       &RequestContext{StatusFlag: "final"},
			expected: false,
		},
		{
			name:     "constrained dimension rejects empty value",
			record:   Record{ID: "r1", Applicability: Applicability{Statuses: []string{"draft"}}},
			rc:       &RequestContext{},
			expected: false,
		},
		{
			name:     "category all sentinel",
			record:   Record{ID: "r1", Applicability: Applicability{Categories: []string{CategoryAll}}},
			rc:       &RequestContext{ContentCategory: "anything"},
			expected: true,
		},
		{
			name:     "category list match is case-insensitive",
			record:   Record{ID: "r1", Applicability: Applicability{Categories: []string{"Residential"}}},
			rc:       &RequestContext{ContentCategory: "residential"},
			expected: true,
		},
		{
			name: "all dimensions must hold",
			record: Record{ID: "r1", Applicability: Applicability{
				Statuses:   []string{"draft"},
				Categories: []string{"residential"},
				Methods:    []string{"express"},
			}},
			rc:       &RequestContext{StatusFlag: "draft", ContentCategory: "residential", GenerationMethod: "standard"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.Matches(tt.rc))
		})
	}
}

func TestRecord_Relevance(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		subject  string
		expected int
	}{
		{
			name:     "no keywords scores zero",
			keywords: nil,
			subject:  "project deadline review",
			expected: 0,
		},
		{
			name:     "substring plus token match",
			keywords: []string{"deadline"},
			subject:  "project deadline review",
			expected: 3, // +2 substring, +1 shared token
		},
		{
			name:     "substring only",
			keywords: []string{"dead"},
			subject:  "project deadline review",
			expected: 2,
		},
		{
			name:     "case-insensitive",
			keywords: []string{"Deadline"},
			subject:  "Project DEADLINE review",
			expected: 3,
		},
		{
			name:     "no overlap",
			keywords: []string{"garden"},
			subject:  "project deadline review",
			expected: 0,
		},
		{
			name:     "multiple keywords accumulate",
			keywords: []string{"deadline", "review"},
			subject:  "project deadline review",
			expected: 6,
		},
		{
			name:     "empty subject scores zero",
			keywords: []string{"deadline"},
			subject:  "",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{ID: "r1", Keywords: tt.keywords}
			assert.Equal(t, tt.expected, r.Relevance(tt.subject))
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := Record{ID: "r1", Tier: TierHigh, Instruction: "keep it formal"}
	require.NoError(t, valid.Validate())

	t.Run("missing id", func(t *testing.T) {
		r := valid
		r.ID = ""
		assert.Error(t, r.Validate())
	})

	t.Run("missing instruction", func(t *testing.T) {
		r := valid
		r.Instruction = ""
		assert.Error(t, r.Validate())
	})

	t.Run("unknown tier", func(t *testing.T) {
		r := valid
		r.Tier = "urgent"
		assert.Error(t, r.Validate())
	})

	t.Run("incomplete example pair", func(t *testing.T) {
		r := valid
		r.Examples = []ExamplePair{{Bad: "only bad"}}
		assert.Error(t, r.Validate())
	})
}

func TestRecord_RecapText(t *testing.T) {
	r := Record{ID: "r1", Instruction: "long instruction", ShortForm: "short"}
	assert.Equal(t, "short", r.RecapText())

	r.ShortForm = ""
	assert.Equal(t, "long instruction", r.RecapText())
}

func TestRecord_Clone(t *testing.T) {
	original := &Record{
		ID:       "r1",
		Tier:     TierCritical,
		Keywords: []string{"deadline"},
		Examples: []ExamplePair{{Bad: "b", Good: "g"}},
	}

	clone := original.Clone()
	clone.Keywords[0] = "changed"
	clone.Examples[0].Bad = "changed"

	assert.Equal(t, "deadline", original.Keywords[0])
	assert.Equal(t, "b", original.Examples[0].Bad)
}

func TestRequestContext_Clone(t *testing.T) {
	original := &RequestContext{
		SubjectText:       "subject",
		RequiredTerms:     []string{"Acme"},
		PriorStageOutputs: map[string]string{"body": "text"},
	}

	clone := original.Clone()
	clone.RequiredTerms[0] = "changed"
	clone.PriorStageOutputs["body"] = "changed"
	clone.PriorStageOutputs["title"] = "new"

	assert.Equal(t, "Acme", original.RequiredTerms[0])
	assert.Equal(t, "text", original.PriorStageOutputs["body"])
	assert.NotContains(t, original.PriorStageOutputs, "title")
}
