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

var ingestList bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Load a source's staged data into its landing table",
	Long: `Load the staged CSV file for a source type into its LANDING_RAW table.
The landing table is replaced wholesale on every run. Pass --list to see the
registered source types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestList, "list", false, "List registered source types")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		return err
	}

	registry := sources.NewRegistry(cfg.Sources)

	if ingestList {
		for _, name := range registry.Names() {
			console.Println(name)
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("expected a source type argument, one of %v", registry.Names())
	}

	svc, err := connectWarehouse(cfg)
	if err != nil {
		ui.ShowError(err)
		return err
	}
	defer svc.Close()

	pipe := pipeline.New(svc, audit.NewLogger(svc), registry)

	spinner := ui.NewSpinner(fmt.Sprintf("Ingesting %s...", args[0]))
	spinner.Start()
	result, err := pipe.Ingest(ctx, args[0])
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
