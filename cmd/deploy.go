package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"healthpipe/internal/catalog"
	"healthpipe/internal/masking"
	"healthpipe/internal/ui"
)

var deploySkipMasking bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create the warehouse schemas, tables and masking policies",
	Long: `Create the LANDING_RAW, CURATED, DATA_MART and LOGGING schemas with their
tables, then apply the column masking policies. Idempotent: existing objects
are left in place.`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().BoolVar(&deploySkipMasking, "skip-masking", false, "Skip masking policy deployment")
}

func runDeploy(cmd *cobra.Command, args []string) error {
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

	ui.ShowHeader("Deploying warehouse objects")

	spinner := ui.NewSpinner("Creating schemas and tables...")
	spinner.Start()
	if err := catalog.Deploy(ctx, svc); err != nil {
		spinner.Stop(false, "Schema deployment failed")
		ui.ShowError(err)
		return err
	}
	spinner.Stop(true, fmt.Sprintf("Created %d tables", len(catalog.Tables())))
	for _, table := range catalog.Tables() {
		console.VerbosePrintf("  %s\n", table.Ref(svc.Dialect()))
	}

	if deploySkipMasking {
		console.Info("Masking policy deployment skipped")
		return nil
	}

	spinner = ui.NewSpinner("Applying masking policies...")
	spinner.Start()
	if err := masking.Deploy(ctx, svc); err != nil {
		spinner.Stop(false, "Masking policy deployment failed")
		ui.ShowError(err)
		return err
	}
	spinner.Stop(true, "Masking policies applied")

	console.Success("Warehouse deployment complete")
	return nil
}
