package main

import (
	"context"
	"fmt"

	"recipe-recommender/internal/app"
	"recipe-recommender/internal/core/ingest"

	"github.com/spf13/cobra"
)

var ingestConcurrency int

func init() {
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "Keywords fetched in parallel (default from config)")
	seedCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "Keywords fetched in parallel (default from config)")
	rootCmd.AddCommand(ingestCmd, seedCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <keyword>...",
	Short: "Fetch recipes for ingredient keywords and store new ones",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args, false)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ensure the collection and ingest the configured seed keywords",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, nil, true)
	},
}

// IngestOutput ingest 指令輸出
type IngestOutput struct {
	Results []*ingest.Result `json:"results"`
	Total   ingest.Result    `json:"total"`
}

func runIngest(cmd *cobra.Command, keywords []string, seed bool) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if seed {
			if err := a.Index.EnsureCollection(ctx, a.Config.Embedding.Dimension); err != nil {
				return fmt.Errorf("ensure collection: %w", err)
			}
			keywords = a.Config.Source.SeedKeywords
			if len(keywords) == 0 {
				keywords = ingest.DefaultSeedKeywords
			}
		}

		concurrency := ingestConcurrency
		if concurrency <= 0 {
			concurrency = a.Config.Source.Concurrency
		}

		results, err := a.Pipeline.IngestMany(ctx, keywords, concurrency)
		if err != nil {
			return err
		}
		out := IngestOutput{Results: results, Total: ingest.Total(results)}

		if humanOutput {
			for _, r := range results {
				outputHuman("%-10s fetched=%d created=%d skipped=%d failed=%d embedded=%d\n",
					r.Keyword, r.Fetched, r.Created, r.Skipped, r.Failed, r.Embedded)
			}
			outputHuman("total: %d new recipes\n", out.Total.Created)
			return nil
		}
		return outputJSON(out)
	})
}
