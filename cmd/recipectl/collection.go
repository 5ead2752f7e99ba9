package main

import (
	"context"

	"recipe-recommender/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	collectionCmd.AddCommand(collectionEnsureCmd, collectionRecreateCmd)
	rootCmd.AddCommand(collectionCmd)
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the vector index collection",
}

var collectionEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the collection if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollection(cmd, false)
	},
}

var collectionRecreateCmd = &cobra.Command{
	Use:   "recreate",
	Short: "Drop and recreate the collection (all vectors are lost)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollection(cmd, true)
	},
}

// CollectionResult collection 指令輸出
type CollectionResult struct {
	Status    string `json:"status"`
	Dimension int    `json:"dimension"`
}

func runCollection(cmd *cobra.Command, recreate bool) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		dim := a.Config.Embedding.Dimension
		result := CollectionResult{Status: "ensured", Dimension: dim}

		var err error
		if recreate {
			result.Status = "recreated"
			err = a.Index.RecreateCollection(ctx, dim)
		} else {
			err = a.Index.EnsureCollection(ctx, dim)
		}
		if err != nil {
			return err
		}

		if humanOutput {
			outputHuman("collection %s (dimension %d)\n", result.Status, dim)
			return nil
		}
		return outputJSON(result)
	})
}
