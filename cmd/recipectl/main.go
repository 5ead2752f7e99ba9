// Package main provides the recipectl admin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recipe-recommender/internal/app"
	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/pkg/common"

	"github.com/spf13/cobra"
)

// Version 建置時以 ldflags 設定
var Version = "dev"

// humanOutput 以人類可讀格式輸出
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		outputError(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recipectl",
	Short: "Recipe catalog and ranking administration",
	Long: `recipectl manages the recipe catalog and vector index behind the
recommendation API: create the collection, ingest recipes by keyword,
embed pending recipes, run ad-hoc recommendations and offline evaluation.

Configuration is read from .env and APP_* environment variables, the
same as the API server. Output is JSON unless --human is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// withApp 載入設定並組裝服務，結束時釋放
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	common.InitConsoleLogger(cfg.LogLevel)
	defer common.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
