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

var martCmd = &cobra.Command{
	Use:   "mart",
	Short: "Rebuild the data mart aggregates",
	Long: `Aggregate the VALID curated rows into PUBLIC_HEALTH_DASHBOARD and
ENVIRONMENTAL_RISK_SUMMARY. Only rows flagged VALID contribute to the
aggregates.`,
	RunE: runMart,
}

func init() {
	rootCmd.AddCommand(martCmd)
}

func runMart(cmd *cobra.Command, args []string) error {
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

	spinner := ui.NewSpinner("Building data mart...")
	spinner.Start()
	result, err := pipe.BuildMart(ctx)
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

	for name, count := range result.Counts {
		console.VerbosePrintf("  %s: %d\n", name, count)
	}
	console.Success(fmt.Sprintf("Execution %s finished in %s", result.ExecutionID, ui.FormatDuration(result.Duration())))
	return nil
}
