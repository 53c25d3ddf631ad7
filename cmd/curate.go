package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"healthpipe/internal/audit"
	"healthpipe/internal/pipeline"
	"healthpipe/internal/sources"
	"healthpipe/internal/ui"
)

var curateFullRefresh bool

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Transform landed data into the curated tables",
	Long: `Clean, quality-flag and upsert the landed rows into the CURATED tables.
Rows are keyed by (location_key, data_year); --full-refresh truncates the
curated tables first for a complete backfill.`,
	RunE: runCurate,
}

func init() {
	rootCmd.AddCommand(curateCmd)

	curateCmd.Flags().BoolVar(&curateFullRefresh, "full-refresh", false, "Truncate curated tables before loading")
}

func runCurate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		return err
	}

	svc, err := connectWarehouse(cfg)
	if err != nil {
		ui.ShowError(err)
		return err
	}
	defer svc.Close()

	pipe := pipeline.New(svc, audit.NewLogger(svc), sources.NewRegistry(cfg.Sources))

	spinner := ui.NewSpinner("Curating landed data...")
	spinner.Start()
	result, err := pipe.Curate(ctx, curateFullRefresh)
	if err != nil {
		detail := err.Error()
		if result != nil {
			detail = result.Status
		}
		spinner.Stop(false, detail)
		ui.ShowError(err)
		return err
	}
	spinner.Stop(true, result.Status)

	console.Success(fmt.Sprintf("Execution %s finished in %s", result.ExecutionID, ui.FormatDuration(result.Duration())))
	return nil
}
