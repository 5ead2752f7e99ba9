package main

import (
	"context"
	"errors"
	"fmt"

	"recipe-recommender/internal/app"
	"recipe-recommender/internal/core/recommend"

	"github.com/spf13/cobra"
)

var (
	recommendUser   int64
	recommendQuery  string
	recommendTopK   int
	recommendRerank bool
)

func init() {
	recommendCmd.Flags().Int64Var(&recommendUser, "user", 1, "User whose pantry boosts the ranking")
	recommendCmd.Flags().StringVar(&recommendQuery, "query", "", "Free-text query")
	recommendCmd.Flags().IntVar(&recommendTopK, "top-k", 0, "Number of results (default from config)")
	recommendCmd.Flags().BoolVar(&recommendRerank, "rerank", true, "Re-rank candidates with the language model")
	recommendCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(recommendCmd)
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run a recommendation the same way the API does",
	Args:  cobra.NoArgs,
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if recommendUser <= 0 {
		return errors.New("--user must be positive")
	}
	if recommendTopK < 0 {
		return errors.New("--top-k must not be negative")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := checkTopK(recommendTopK, a.Config.Ranking.MaxTopK); err != nil {
			return err
		}
		req := recommend.Request{UserID: recommendUser, Query: recommendQuery, Rerank: &recommendRerank}
		if recommendTopK > 0 {
			req.TopK = &recommendTopK
		}

		resp, err := a.Recommend.Recommend(ctx, req)
		if err != nil {
			return err
		}

		if humanOutput {
			outputHuman("fridge: %v\n", resp.Fridge)
			for i, r := range resp.Recommendations {
				outputHuman("%2d. [%d] %s\n", i+1, r.ID, truncate(r.Name, 40))
				if r.Reason != "" {
					outputHuman("    %s\n", truncate(r.Reason, 70))
				}
			}
			return nil
		}
		return outputJSON(resp)
	})
}

func checkTopK(topK, limit int) error {
	if limit > 0 && topK > limit {
		return fmt.Errorf("--top-k must not exceed %d (ranking.max_top_k)", limit)
	}
	return nil
}
