package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"adscribe/internal/guideline"
	"adscribe/internal/scoring"
)

func TestMain(m *testing.M) {
	// The genai SDK's opencensus dependency starts a metrics worker at
	// init; it is process-lifetime, not a leak.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeClient replays a scripted sequence of completions and records the
// prompts it was given.
type fakeClient struct {
	responses []fakeResponse
	prompts   []string
	onCall    func(call int)
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeClient) Complete(_ context.Context, prompt string) (string, error) {
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if f.onCall != nil {
		f.onCall(call)
	}
	if call >= len(f.responses) {
		return "", errors.New("fake client: script exhausted")
	}
	r := f.responses[call]
	return r.text, r.err
}

// scriptScorer returns queued results in order, regardless of candidate.
type scriptScorer struct {
	results []*scoring.Result
	calls   int
}

func (s *scriptScorer) Score(_ string, _ *guideline.RequestContext) *scoring.Result {
	if s.calls >= len(s.results) {
		panic("scriptScorer: no result queued")
	}
	r := s.results[s.calls]
	s.calls++
	return r
}

func scored(score int, suggestions ...string) *scoring.Result {
	return &scoring.Result{Score: score, Passed: score >= 70, Suggestions: suggestions}
}

func basePrompt(_ *guideline.RequestContext) string { return "write the copy" }

func testContext() *guideline.RequestContext {
	return &guideline.RequestContext{SubjectText: "riverside apartment"}
}

func TestController_AcceptsFirstAttempt(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{text: "good draft"}}}
	scorer := &scriptScorer{results: []*scoring.Result{scored(90)}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	assert.True(t, result.Passed)
	assert.Equal(t, "good draft", result.FinalText)
	assert.Equal(t, 90, result.Score)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, "body", result.Stages[0].Name)
	assert.True(t, result.Stages[0].Passed)
}

func TestController_RetryThenAccept(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: "weak draft"},
		{text: "strong draft"},
	}}
	scorer := &scriptScorer{results: []*scoring.Result{
		scored(40, "work more of the subject in"),
		scored(85),
	}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	assert.True(t, result.Passed)
	assert.Equal(t, "strong draft", result.FinalText)
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, 2, result.AttemptsUsed)

	// The second prompt carries the scored feedback and the prior draft.
	require.Len(t, client.prompts, 2)
	assert.Equal(t, "write the copy", client.prompts[0])
	assert.Contains(t, client.prompts[1], "scored 40/100")
	assert.Contains(t, client.prompts[1], "work more of the subject in")
	assert.Contains(t, client.prompts[1], "weak draft")
	assert.True(t, strings.HasSuffix(client.prompts[1], "write the copy"))
}

func TestController_ExhaustsBudget(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: "draft one"},
		{text: "draft two"},
		{text: "draft three"},
	}}
	scorer := &scriptScorer{results: []*scoring.Result{
		scored(40), scored(55), scored(60),
	}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	// Best effort: the highest-scoring attempt wins even without passing.
	assert.False(t, result.Passed)
	assert.Equal(t, "draft three", result.FinalText)
	assert.Equal(t, 60, result.Score)
	assert.Equal(t, 3, result.AttemptsUsed)
}

func TestController_KeepsBestWhenScoresDrop(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: "decent draft"},
		{text: "worse draft"},
	}}
	scorer := &scriptScorer{results: []*scoring.Result{
		scored(50), scored(30),
	}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 2})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	assert.Equal(t, "decent draft", result.FinalText)
	assert.Equal(t, 50, result.Score)
	assert.False(t, result.Passed)
}

func TestController_TransportFailuresConsumeBudget(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
	}}
	scorer := &scriptScorer{}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	assert.False(t, result.Passed)
	assert.Empty(t, result.FinalText)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 3, result.AttemptsUsed)
	assert.Equal(t, 0, scorer.calls, "failed invocations never reach the scorer")
}

func TestController_EmptyCompletionTreatedAsFailure(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: "   \n  "},
		{text: "real draft"},
	}}
	scorer := &scriptScorer{results: []*scoring.Result{scored(80)}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(context.Background(), testContext())

	assert.True(t, result.Passed)
	assert.Equal(t, "real draft", result.FinalText)
	assert.Equal(t, 2, result.AttemptsUsed)
	assert.Equal(t, 1, scorer.calls)
}

func TestController_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{responses: []fakeResponse{{text: "never used"}}}
	scorer := &scriptScorer{}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 3})
	require.NoError(t, err)

	result := c.Run(ctx, testContext())

	assert.False(t, result.Passed)
	assert.Equal(t, 0, result.AttemptsUsed)
	assert.Empty(t, client.prompts)
}

func TestController_CancellationAtAttemptBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeClient{
		responses: []fakeResponse{{text: "first draft"}},
		onCall: func(call int) {
			if call == 0 {
				cancel()
			}
		},
	}
	scorer := &scriptScorer{results: []*scoring.Result{scored(40)}}

	c, err := NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 5})
	require.NoError(t, err)

	result := c.Run(ctx, testContext())

	// The in-flight attempt completes; the next boundary stops the loop.
	assert.False(t, result.Passed)
	assert.Equal(t, "first draft", result.FinalText)
	assert.Equal(t, 40, result.Score)
	assert.Equal(t, 1, result.AttemptsUsed)
}

func TestController_EmptyResultPolicy(t *testing.T) {
	t.Run("floor score clears text", func(t *testing.T) {
		client := &fakeClient{responses: []fakeResponse{{text: "bad draft"}}}
		scorer := &scriptScorer{results: []*scoring.Result{scored(20)}}

		c, err := NewController("body", basePrompt, client, scorer, Options{
			MinScore: 70, MaxAttempts: 1, FloorScore: 50, ClearFinalText: true,
		})
		require.NoError(t, err)

		result := c.Run(context.Background(), testContext())

		assert.Empty(t, result.FinalText)
		assert.Equal(t, 20, result.Score, "score is reported even when the text is cleared")
		assert.False(t, result.Passed)
		require.Len(t, result.Stages, 1)
		assert.True(t, result.Stages[0].Cleared)
	})

	t.Run("hard max length clears text", func(t *testing.T) {
		client := &fakeClient{responses: []fakeResponse{{text: strings.Repeat("x", 300)}}}
		scorer := &scriptScorer{results: []*scoring.Result{scored(75)}}

		c, err := NewController("body", basePrompt, client, scorer, Options{
			MinScore: 70, MaxAttempts: 1, HardMaxLength: 200, ClearFinalText: true,
		})
		require.NoError(t, err)

		result := c.Run(context.Background(), testContext())

		assert.Empty(t, result.FinalText)
		assert.False(t, result.Passed)
		assert.True(t, result.Stages[0].Cleared)
	})

	t.Run("policy disabled keeps degenerate text", func(t *testing.T) {
		client := &fakeClient{responses: []fakeResponse{{text: "bad draft"}}}
		scorer := &scriptScorer{results: []*scoring.Result{scored(20)}}

		c, err := NewController("body", basePrompt, client, scorer, Options{
			MinScore: 70, MaxAttempts: 1, FloorScore: 50,
		})
		require.NoError(t, err)

		result := c.Run(context.Background(), testContext())

		assert.Equal(t, "bad draft", result.FinalText)
		assert.False(t, result.Stages[0].Cleared)
	})
}

func TestNewController_Validation(t *testing.T) {
	client := &fakeClient{}
	scorer := &scriptScorer{}
	valid := Options{MinScore: 70, MaxAttempts: 3}

	tests := []struct {
		name    string
		make    func() (*Controller, error)
		wantErr string
	}{
		{
			name: "missing name",
			make: func() (*Controller, error) {
				return NewController("", basePrompt, client, scorer, valid)
			},
			wantErr: "name",
		},
		{
			name: "missing prompt builder",
			make: func() (*Controller, error) {
				return NewController("body", nil, client, scorer, valid)
			},
			wantErr: "prompt builder",
		},
		{
			name: "missing client",
			make: func() (*Controller, error) {
				return NewController("body", basePrompt, nil, scorer, valid)
			},
			wantErr: "client",
		},
		{
			name: "missing scorer",
			make: func() (*Controller, error) {
				return NewController("body", basePrompt, client, nil, valid)
			},
			wantErr: "scorer",
		},
		{
			name: "min score out of range",
			make: func() (*Controller, error) {
				return NewController("body", basePrompt, client, scorer, Options{MinScore: 120, MaxAttempts: 3})
			},
			wantErr: "min score",
		},
		{
			name: "zero attempts",
			make: func() (*Controller, error) {
				return NewController("body", basePrompt, client, scorer, Options{MinScore: 70})
			},
			wantErr: "max attempts",
		},
		{
			name: "negative hard max length",
			make: func() (*Controller, error) {
				return NewController("body", basePrompt, client, scorer, Options{MinScore: 70, MaxAttempts: 1, HardMaxLength: -1})
			},
			wantErr: "hard max length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.make()
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
