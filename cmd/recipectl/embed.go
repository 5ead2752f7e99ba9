package main

import (
	"context"

	"recipe-recommender/internal/app"

	"github.com/spf13/cobra"
)

var embedBatchSize int

func init() {
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", 0, "Recipes encoded per batch (default from config)")
	rootCmd.AddCommand(embedCmd)
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed every recipe that has no vector yet",
	Args:  cobra.NoArgs,
	RunE:  runEmbed,
}

// EmbedResult embed 指令輸出
type EmbedResult struct {
	Embedded int `json:"embedded"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		n, err := a.Generator.EmbedPending(ctx, embedBatchSize)
		if err != nil {
			return err
		}
		if humanOutput {
			outputHuman("embedded %d recipes\n", n)
			return nil
		}
		return outputJSON(EmbedResult{Embedded: n})
	})
}
