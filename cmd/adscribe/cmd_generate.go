package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"adscribe/internal/config"
	"adscribe/internal/guideline"
	"adscribe/internal/llm"
	"adscribe/internal/pipeline"
	"adscribe/internal/prompting"
	"adscribe/internal/scoring"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	genSubject       string
	genCategory      string
	genMethod        string
	genStatus        string
	genTargetLength  int
	genRequiredTerms []string
	genCount         int
	genJSON          bool
)

// generateCmd runs the full two-stage generation pipeline
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate copy for a subject through the scored pipeline",
	Long: `Runs the two-stage generation pipeline (body, then title) for one
or more independent requests. Each request selects applicable guidelines,
assembles them into the prompt, and retries generation until the quality
threshold is met or the attempt budget runs out.

Example:
  adscribe generate --subject "Sunlit three-bedroom house near the harbor" \
    --category residential --term "Harborview Estates" --length 1800`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genSubject, "subject", "s", "", "subject text (required)")
	generateCmd.Flags().StringVar(&genCategory, "category", "", "content category")
	generateCmd.Flags().StringVar(&genMethod, "method", "standard", "generation method")
	generateCmd.Flags().StringVar(&genStatus, "status", "", "request status flag")
	generateCmd.Flags().IntVarP(&genTargetLength, "length", "l", 1500, "target length in characters")
	generateCmd.Flags().StringArrayVarP(&genRequiredTerms, "term", "t", nil, "required term (repeatable)")
	generateCmd.Flags().IntVarP(&genCount, "count", "n", 1, "number of independent generations")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print results as JSON")
	_ = generateCmd.MarkFlagRequired("subject")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := llm.NewClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Timeout:         cfg.LLM.ParseTimeout(),
	})
	if err != nil {
		return err
	}

	cache, cleanup, err := openCorpusCache(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	corpus, err := cache.Corpus(ctx)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", zap.Int("records", corpus.Count()))

	rc := &guideline.RequestContext{
		SubjectText:      genSubject,
		ContentCategory:  genCategory,
		GenerationMethod: genMethod,
		StatusFlag:       genStatus,
		TargetLength:     genTargetLength,
		RequiredTerms:    genRequiredTerms,
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	orchestrator, err := buildPipeline(cfg, client, corpus, rc)
	if err != nil {
		return err
	}

	if genCount < 1 {
		genCount = 1
	}

	// Independent requests share only the read-only corpus; they can run
	// concurrently.
	results := make([]*pipeline.PipelineResult, genCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < genCount; i++ {
		g.Go(func() error {
			result, err := orchestrator.Run(gctx, rc)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, result := range results {
		printResult(result)
	}
	return nil
}

// buildPipeline wires the standard two-stage pipeline for one request.
func buildPipeline(cfg *config.Config, client llm.Client, corpus *guideline.Corpus, rc *guideline.RequestContext) (*pipeline.Orchestrator, error) {
	selection := guideline.NewSelector().Select(corpus, rc)
	blocks := guideline.NewAssembler().Assemble(selection, rc)

	scorerCfg := scoring.Config{
		MaxLength:        cfg.Scoring.MaxLength,
		MinLength:        cfg.Scoring.MinLength,
		LengthTolerance:  cfg.Scoring.LengthTolerance,
		TermWindow:       cfg.Scoring.TermWindow,
		TermMinCount:     cfg.Scoring.TermMinCount,
		TermMaxCount:     cfg.Scoring.TermMaxCount,
		AllowedFigures:   cfg.Scoring.AllowedFigures,
		ForbiddenPhrases: scoring.ForbiddenPhrasesFromSelection(selection),
		DensityThreshold: cfg.Scoring.DensityThreshold,
		PassThreshold:    cfg.Scoring.PassThreshold,
	}
	bodyScorer := scoring.NewScorer(scorerCfg)

	// Titles are short: relax the structural length bounds.
	titleCfg := scorerCfg
	titleCfg.MinLength = 10
	titleCfg.MaxLength = 200
	titleScorer := scoring.NewScorer(titleCfg)

	opts := pipeline.Options{
		MinScore:       cfg.Pipeline.MinScore,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		FloorScore:     cfg.Pipeline.FloorScore,
		HardMaxLength:  cfg.Pipeline.HardMaxLength,
		ClearFinalText: cfg.Pipeline.ClearFinalText,
	}
	titleOpts := opts
	titleOpts.HardMaxLength = 200

	return pipeline.NewOrchestrator(client, []pipeline.StageSpec{
		{Name: prompting.StageBody, BuildPrompt: prompting.BodyPrompt(blocks), Scorer: bodyScorer, Options: opts},
		{Name: prompting.StageTitle, BuildPrompt: prompting.TitlePrompt(blocks), Scorer: titleScorer, Options: titleOpts},
	}, pipeline.OrchestratorOptions{
		AbortOnStageFailure: cfg.Pipeline.AbortOnStageFailure,
	})
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath(workspace)
	}
	return config.Load(path)
}

// openCorpusCache builds the corpus cache from the configured source:
// a compiled SQLite store when configured, the YAML directory otherwise.
func openCorpusCache(cfg *config.Config) (*guideline.Cache, func(), error) {
	if cfg.Corpus.DatabasePath != "" {
		store, err := guideline.OpenStore(cfg.Corpus.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		cache := guideline.NewCache(guideline.StoreLoadFunc(store))
		return cache, func() { store.Close() }, nil
	}

	cache := guideline.NewCache(guideline.DirectoryLoadFunc(cfg.Corpus.Path))
	cleanup := func() {}
	if cfg.Corpus.Watch {
		if err := cache.Watch(cfg.Corpus.Path); err != nil {
			return nil, nil, err
		}
		cleanup = cache.StopWatch
	}
	return cache, cleanup, nil
}

func printResult(result *pipeline.PipelineResult) {
	if genJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	fmt.Printf("Run %s: score=%d passed=%v attempts=%d\n", result.RunID, result.Score, result.Passed, result.AttemptsUsed)
	for _, stage := range result.Stages {
		fmt.Printf("  stage %-6s score=%-3d attempts=%d passed=%v cleared=%v\n",
			stage.Name, stage.Score, stage.AttemptsUsed, stage.Passed, stage.Cleared)
	}

	title := result.StageOutputs[prompting.StageTitle]
	body := result.StageOutputs[prompting.StageBody]
	if body == "" && title == "" {
		fmt.Println("  (no usable output)")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	if title != "" {
		fmt.Println(title)
		fmt.Println()
	}
	if body != "" {
		fmt.Println(body)
	}
}
