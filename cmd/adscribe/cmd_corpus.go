package main

import (
	"fmt"

	"adscribe/internal/guideline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var corpusDBPath string

// corpusCmd groups guideline corpus maintenance commands
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the guideline corpus",
}

// corpusValidateCmd parses the YAML corpus and reports problems
var corpusValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate the YAML guideline corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := guideline.NewLoader().LoadDirectory(args[0])
		if err != nil {
			return err
		}

		// NewCorpus catches duplicate IDs on top of per-record validation.
		corpus, err := guideline.NewCorpus(records)
		if err != nil {
			return err
		}

		byTier := make(map[guideline.Tier]int)
		for _, tier := range guideline.AllTiers() {
			byTier[tier] = len(corpus.ByTier(tier))
		}

		fmt.Printf("corpus OK: %d records (critical=%d high=%d medium=%d low=%d)\n",
			corpus.Count(), byTier[guideline.TierCritical], byTier[guideline.TierHigh],
			byTier[guideline.TierMedium], byTier[guideline.TierLow])
		return nil
	},
}

// corpusLoadCmd compiles the YAML corpus into a SQLite store
var corpusLoadCmd = &cobra.Command{
	Use:   "load [dir]",
	Short: "Compile the YAML corpus into a SQLite store",
	Long: `Parses all YAML guideline files under the directory and writes them
into a SQLite corpus store. Deployments then bulk-load the store at
startup instead of shipping the YAML tree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := guideline.NewLoader().LoadDirectory(args[0])
		if err != nil {
			return err
		}

		store, err := guideline.OpenStore(corpusDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		saved, err := store.SaveAll(cmd.Context(), records)
		if err != nil {
			return err
		}

		logger.Info("corpus compiled",
			zap.Int("parsed", len(records)),
			zap.Int("stored", saved),
			zap.String("db", corpusDBPath))
		fmt.Printf("stored %d/%d records in %s\n", saved, len(records), corpusDBPath)
		return nil
	},
}

func init() {
	corpusLoadCmd.Flags().StringVar(&corpusDBPath, "db", "guidelines.db", "SQLite store path")
	corpusCmd.AddCommand(corpusValidateCmd)
	corpusCmd.AddCommand(corpusLoadCmd)
}
