// Package pipeline drives generation attempts against the quality scorer
// until a threshold is met or the retry budget runs out. A controller run
// always resolves to a PipelineResult; repeated bad candidates are a
// quality outcome, never an error.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"adscribe/internal/guideline"
	"adscribe/internal/llm"
	"adscribe/internal/logging"
	"adscribe/internal/scoring"

	"github.com/google/uuid"
)

// State identifies a controller state. The run loop is an explicit
// finite state machine: BUILDING -> INVOKING -> SCORING ->
// {ACCEPTED | RETRYING | EXHAUSTED}.
type State string

const (
	StateBuilding  State = "building"
	StateInvoking  State = "invoking"
	StateScoring   State = "scoring"
	StateAccepted  State = "accepted"
	StateRetrying  State = "retrying"
	StateExhausted State = "exhausted"
)

// PromptBuilder produces the base generation prompt for a request. It
// must be a pure formatting function; the controller owns all control
// flow around it.
type PromptBuilder func(rc *guideline.RequestContext) string

// Scorer abstracts the quality scorer so stages can plug in their own.
type Scorer interface {
	Score(candidate string, rc *guideline.RequestContext) *scoring.Result
}

// Options configures one controller. Validation happens at construction:
// a bad option set is a programming mistake and fails fast, before any
// attempt is made.
type Options struct {
	// MinScore is the acceptance threshold (0-100).
	MinScore int

	// MaxAttempts is the retry budget (>= 1).
	MaxAttempts int

	// FloorScore is the absolute floor below which the best-effort text
	// is considered unusable (degenerate case).
	FloorScore int

	// HardMaxLength marks a candidate unusable beyond this many
	// characters even after scoring. Zero disables the bound.
	HardMaxLength int

	// ClearFinalText controls the empty-result policy: when true, a
	// degenerate best-effort result has its text cleared to signal "no
	// usable output" instead of returning dangerously bad copy.
	ClearFinalText bool
}

// Validate checks the options for construction-time errors.
func (o Options) Validate() error {
	if o.MinScore < 0 || o.MinScore > 100 {
		return fmt.Errorf("min score must be in [0,100], got %d", o.MinScore)
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", o.MaxAttempts)
	}
	if o.FloorScore < 0 || o.FloorScore > 100 {
		return fmt.Errorf("floor score must be in [0,100], got %d", o.FloorScore)
	}
	if o.HardMaxLength < 0 {
		return fmt.Errorf("hard max length must not be negative, got %d", o.HardMaxLength)
	}
	return nil
}

// AttemptRecord captures one scored attempt. The history is append-only
// within a run and never exceeds MaxAttempts entries.
type AttemptRecord struct {
	// Index is the 1-based attempt number.
	Index int

	// Candidate is the completion text the model produced.
	Candidate string

	// Result is the scoring outcome for the candidate.
	Result *scoring.Result
}

// StageMetadata summarizes one stage's outcome inside a PipelineResult.
type StageMetadata struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	AttemptsUsed int    `json:"attempts_used"`
	Passed       bool   `json:"passed"`
	Cleared      bool   `json:"cleared"`
}

// PipelineResult is the terminal, caller-visible artifact of a run.
type PipelineResult struct {
	// RunID correlates logs across the run.
	RunID string `json:"run_id"`

	// FinalText is the best-effort output. Empty either because no
	// attempt produced a candidate or because the empty-result policy
	// cleared a degenerate result.
	FinalText string `json:"final_text"`

	// Score is the best score reached across the attempt history.
	Score int `json:"score"`

	// AttemptsUsed counts consumed attempts, including transport
	// failures that never reached scoring.
	AttemptsUsed int `json:"attempts_used"`

	// Passed is true only when an attempt reached the acceptance
	// threshold.
	Passed bool `json:"passed"`

	// Stages holds per-stage outcomes for multi-stage runs; a bare
	// controller run has a single entry.
	Stages []StageMetadata `json:"stages,omitempty"`

	// StageOutputs holds each stage's best-effort text, keyed by stage
	// name, so no stage's artifact is lost behind FinalText. Populated
	// by the orchestrator; nil for a bare controller run.
	StageOutputs map[string]string `json:"stage_outputs,omitempty"`
}

// Controller runs the generate-score-retry loop for one prompt/scorer
// pairing. Attempts execute strictly sequentially: attempt k's prompt
// depends on attempt k-1's scored feedback.
type Controller struct {
	name        string
	buildPrompt PromptBuilder
	client      llm.Client
	scorer      Scorer
	opts        Options
}

// NewController creates a controller, failing fast on invalid options.
func NewController(name string, buildPrompt PromptBuilder, client llm.Client, scorer Scorer, opts Options) (*Controller, error) {
	if name == "" {
		return nil, fmt.Errorf("controller name is required")
	}
	if buildPrompt == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller options: %w", err)
	}

	return &Controller{
		name:        name,
		buildPrompt: buildPrompt,
		client:      client,
		scorer:      scorer,
		opts:        opts,
	}, nil
}

// Run executes the loop until ACCEPTED or EXHAUSTED. Cancellation takes
// effect at the next attempt boundary and yields the best-so-far result
// with Passed=false.
func (c *Controller) Run(ctx context.Context, rc *guideline.RequestContext) *PipelineResult {
	runID := uuid.NewString()
	log := logging.WithRunID(logging.CategoryPipeline, runID)
	log.Info("Stage %s: starting (minScore=%d, maxAttempts=%d)", c.name, c.opts.MinScore, c.opts.MaxAttempts)

	var (
		history    []AttemptRecord
		best       *AttemptRecord
		lastScored *AttemptRecord
		attempts   int
	)

	state := StateBuilding
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		// Cancellation is honored between attempts, not mid-invocation.
		if ctx.Err() != nil {
			log.Warn("Stage %s: cancelled after %d attempts", c.name, attempts)
			state = StateExhausted
			break
		}

		attempts = attempt

		state = StateBuilding
		prompt := c.buildPrompt(rc)
		if lastScored != nil {
			prompt = feedbackPreamble(lastScored) + prompt
		}

		state = StateInvoking
		candidate, err := c.client.Complete(ctx, prompt)
		if err != nil || strings.TrimSpace(candidate) == "" {
			// Transport failure or empty response: the attempt counts
			// against the budget but never enters the history.
			if err != nil {
				log.Warn("Stage %s: attempt %d failed to invoke: %v", c.name, attempt, err)
			} else {
				log.Warn("Stage %s: attempt %d returned an empty completion", c.name, attempt)
			}
			state = StateRetrying
			continue
		}

		state = StateScoring
		result := c.scorer.Score(candidate, rc)

		record := AttemptRecord{Index: attempt, Candidate: candidate, Result: result}
		history = append(history, record)
		lastScored = &history[len(history)-1]

		if best == nil || result.Score > best.Result.Score {
			best = &history[len(history)-1]
		}

		log.Info("Stage %s: attempt %d scored %d", c.name, attempt, result.Score)

		if result.Score >= c.opts.MinScore {
			state = StateAccepted
			break
		}
		state = StateRetrying
	}

	if state != StateAccepted {
		state = StateExhausted
	}

	return c.finalize(runID, state, best, attempts, log)
}

// finalize maps the terminal state and best attempt to a PipelineResult,
// applying the empty-result policy for degenerate outcomes.
func (c *Controller) finalize(runID string, state State, best *AttemptRecord, attempts int, log *logging.RunLogger) *PipelineResult {
	result := &PipelineResult{
		RunID:        runID,
		AttemptsUsed: attempts,
		Passed:       state == StateAccepted,
	}

	if best == nil {
		// Every attempt failed before scoring; nothing to return.
		log.Warn("Stage %s: exhausted with no scored candidate", c.name)
		result.Stages = []StageMetadata{{Name: c.name, AttemptsUsed: attempts, Cleared: c.opts.ClearFinalText}}
		return result
	}

	result.FinalText = best.Candidate
	result.Score = best.Result.Score

	cleared := false
	if c.isDegenerate(best) && c.opts.ClearFinalText {
		// Empty-result policy: signal "no usable output" rather than
		// hand back dangerously bad copy.
		log.Warn("Stage %s: best score %d is degenerate, clearing final text", c.name, best.Result.Score)
		result.FinalText = ""
		result.Passed = false
		cleared = true
	}

	result.Stages = []StageMetadata{{
		Name:         c.name,
		Score:        result.Score,
		AttemptsUsed: attempts,
		Passed:       result.Passed,
		Cleared:      cleared,
	}}

	log.Info("Stage %s: finished (state=%s, score=%d, attempts=%d)", c.name, state, result.Score, attempts)
	return result
}

// isDegenerate reports whether the best attempt falls under the
// empty-result policy.
func (c *Controller) isDegenerate(best *AttemptRecord) bool {
	if best.Result.Score < c.opts.FloorScore {
		return true
	}
	if c.opts.HardMaxLength > 0 && len([]rune(best.Candidate)) > c.opts.HardMaxLength {
		return true
	}
	return false
}

// feedbackPreamble renders the previous candidate and its top
// suggestions as an explicit correction instruction for the next
// attempt.
func feedbackPreamble(last *AttemptRecord) string {
	var b strings.Builder

	b.WriteString("Your previous draft did not meet the quality bar. It scored ")
	b.WriteString(fmt.Sprintf("%d/100.\n\n", last.Result.Score))

	if len(last.Result.Suggestions) > 0 {
		b.WriteString("Fix these problems:\n")
		for _, s := range last.Result.Suggestions {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Previous draft:\n")
	b.WriteString(last.Candidate)
	b.WriteString("\n\nWrite a corrected version following the instructions below.\n\n")

	return b.String()
}
