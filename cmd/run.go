package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"healthpipe/internal/audit"
	"healthpipe/internal/pipeline"
	"healthpipe/internal/sources"
	"healthpipe/internal/ui"
	"healthpipe/pkg/models"
)

var runFullRefresh bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long: `Ingest every registered source, curate the landed data, and rebuild the
data mart, in order. Stops at the first failing stage so downstream tables
never recompute from bad upstream data.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFullRefresh, "full-refresh", false, "Truncate curated tables before loading")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	registry := sources.NewRegistry(cfg.Sources)
	pipe := pipeline.New(svc, audit.NewLogger(svc), registry)

	ui.ShowHeader("Pipeline run")

	step := func(label string, fn func() (*models.Result, error)) error {
		spinner := ui.NewSpinner(label)
		spinner.Start()
		result, err := fn()
		if err != nil {
			detail := err.Error()
			if result != nil {
				detail = result.Status
			}
			spinner.Stop(false, detail)
			return err
		}
		spinner.Stop(true, result.Status)
		console.VerbosePrintf("  execution %s: %d rows in %s\n",
			result.ExecutionID, result.Rows, ui.FormatDuration(result.Duration()))
		return nil
	}

	for _, name := range registry.Names() {
		name := name
		if err := step(fmt.Sprintf("Ingesting %s...", name), func() (*models.Result, error) {
			return pipe.Ingest(ctx, name)
		}); err != nil {
			ui.ShowError(err)
			return err
		}
	}

	if err := step("Curating landed data...", func() (*models.Result, error) {
		return pipe.Curate(ctx, runFullRefresh)
	}); err != nil {
		ui.ShowError(err)
		return err
	}

	if err := step("Building data mart...", func() (*models.Result, error) {
		return pipe.BuildMart(ctx)
	}); err != nil {
		ui.ShowError(err)
		return err
	}

	console.Success("Pipeline run complete")
	return nil
}
