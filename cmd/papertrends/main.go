package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"papertrends/internal/app"
	"papertrends/internal/config"
	"papertrends/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "papertrends",
		Short: "Announce trending research papers across discussion platforms",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		topN       int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one collect-rank-publish batch run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			if configPath != "" {
				os.Setenv("PAPERTRENDS_CONFIG", configPath)
			}
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(cfg, logger, app.Options{DryRun: dryRun, TopN: topN})
			if err != nil {
				logger.Error("startup failed", "error", err)
				return err
			}
			defer application.Close()

			report, err := application.Run(context.Background())
			if err != nil {
				logger.Error("run aborted", "run_id", report.RunID, "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log announcements instead of publishing")
	cmd.Flags().IntVar(&topN, "top", 0, "override the configured top-N count")
	cmd.SilenceUsage = true
	return cmd
}
