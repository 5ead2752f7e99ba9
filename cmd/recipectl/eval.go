package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"recipe-recommender/internal/app"
	"recipe-recommender/internal/core/eval"

	"github.com/spf13/cobra"
)

var (
	evalQueries string
	evalOut     string
	evalK       int
	evalUser    int64
)

func init() {
	evalCmd.Flags().StringVar(&evalQueries, "queries", "", "CSV with query_id, query_text, gt_ids")
	evalCmd.Flags().StringVar(&evalOut, "out", "", "Write per-query results as CSV to this file")
	evalCmd.Flags().IntVar(&evalK, "k", 5, "Cutoff for precision, recall and average precision")
	evalCmd.Flags().Int64Var(&evalUser, "user", 1, "User whose pantry is applied while ranking")
	evalCmd.MarkFlagRequired("queries")
	rootCmd.AddCommand(evalCmd)
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate retrieval quality against labelled queries",
	Args:  cobra.NoArgs,
	RunE:  runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	if evalK <= 0 {
		return errors.New("--k must be positive")
	}

	f, err := os.Open(evalQueries)
	if err != nil {
		return fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()

	queries, err := eval.LoadQueries(f)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		rows, summary, err := eval.Evaluate(ctx, a.Engine, queries, evalUser, evalK)
		if err != nil {
			return err
		}

		if evalOut != "" {
			if err := writeEvalResults(evalOut, rows); err != nil {
				return err
			}
		}

		if humanOutput {
			outputHuman("queries=%d  P@%d=%.4f  R@%d=%.4f  MAP@%d=%.4f\n",
				summary.Queries, evalK, summary.MeanPrecision, evalK, summary.MeanRecall, evalK, summary.MAP)
			return nil
		}
		return outputJSON(summary)
	})
}

func writeEvalResults(path string, rows []eval.Row) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results: %w", err)
	}
	if err := eval.WriteResults(out, rows, evalK); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
