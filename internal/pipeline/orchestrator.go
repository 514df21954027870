package pipeline

import (
	"context"
	"fmt"

	"adscribe/internal/guideline"
	"adscribe/internal/llm"
	"adscribe/internal/logging"

	"github.com/google/uuid"
)

// StageSpec wraps one controller configuration inside a multi-stage
// pipeline. Each stage has its own prompt builder, scorer, and budget.
type StageSpec struct {
	Name        string
	BuildPrompt PromptBuilder
	Scorer      Scorer
	Options     Options
}

// OrchestratorOptions configures cross-stage behavior.
type OrchestratorOptions struct {
	// AbortOnStageFailure stops the pipeline when a stage resolves to a
	// cleared (empty-result) outcome. Default is to continue: downstream
	// stages see an empty prior output and decide for themselves.
	AbortOnStageFailure bool
}

// Orchestrator sequences controller runs. Stage i's best-effort output
// is merged into the request context before stage i+1 runs, so later
// stages can reference earlier text (a titling stage reading the body,
// for example).
type Orchestrator struct {
	client llm.Client
	stages []StageSpec
	opts   OrchestratorOptions
}

// NewOrchestrator validates the stage set at construction time. Unknown
// or duplicate stage names and invalid per-stage options are fatal
// configuration errors, raised before any attempt is made.
func NewOrchestrator(client llm.Client, stages []StageSpec, opts OrchestratorOptions) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	seen := make(map[string]bool, len(stages))
	for _, stage := range stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("stage name is required")
		}
		if seen[stage.Name] {
			return nil, fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = true

		if stage.BuildPrompt == nil {
			return nil, fmt.Errorf("stage %q: prompt builder is required", stage.Name)
		}
		if stage.Scorer == nil {
			return nil, fmt.Errorf("stage %q: scorer is required", stage.Name)
		}
		if err := stage.Options.Validate(); err != nil {
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}
	}

	return &Orchestrator{client: client, stages: stages, opts: opts}, nil
}

// Run executes the stages sequentially and composes the final artifact.
// The caller's request context is never mutated; each run works on its
// own copy.
func (o *Orchestrator) Run(ctx context.Context, rc *guideline.RequestContext) (*PipelineResult, error) {
	runID := uuid.NewString()
	log := logging.WithRunID(logging.CategoryPipeline, runID)
	log.Info("Pipeline starting: %d stages", len(o.stages))

	stageCtx := rc.Clone()
	if stageCtx.PriorStageOutputs == nil {
		stageCtx.PriorStageOutputs = make(map[string]string, len(o.stages))
	}

	final := &PipelineResult{RunID: runID}
	for _, stage := range o.stages {
		controller, err := NewController(stage.Name, stage.BuildPrompt, o.client, stage.Scorer, stage.Options)
		if err != nil {
			// Unreachable after construction-time validation, but a
			// stage spec mutated after NewOrchestrator still fails loud.
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}

		stageResult := controller.Run(ctx, stageCtx)

		// Later stages see this stage's best-effort text, even when empty.
		stageCtx.PriorStageOutputs[stage.Name] = stageResult.FinalText

		final.Stages = append(final.Stages, stageResult.Stages...)
		final.AttemptsUsed += stageResult.AttemptsUsed
		final.FinalText = stageResult.FinalText
		final.Score = stageResult.Score
		final.Passed = stageResult.Passed

		if o.opts.AbortOnStageFailure && stageCleared(stageResult) {
			log.Warn("Stage %s failed and abort-on-failure is set; stopping pipeline", stage.Name)
			final.Passed = false
			break
		}
	}

	// Every stage's text stays reachable on the result; FinalText alone
	// would lose all but the last stage's artifact.
	final.StageOutputs = make(map[string]string, len(o.stages))
	for _, stage := range o.stages {
		if text, ok := stageCtx.PriorStageOutputs[stage.Name]; ok {
			final.StageOutputs[stage.Name] = text
		}
	}

	log.Info("Pipeline finished: score=%d, passed=%v, attempts=%d", final.Score, final.Passed, final.AttemptsUsed)
	return final, nil
}

// stageCleared reports whether a stage resolved under the empty-result
// policy (no usable output).
func stageCleared(result *PipelineResult) bool {
	for _, s := range result.Stages {
		if s.Cleared {
			return true
		}
	}
	return false
}
