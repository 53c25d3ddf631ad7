package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthpipe/internal/config"
	"healthpipe/internal/ui"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

var (
	flagEnvironment string
	flagVerbose     bool
	flagQuiet       bool

	// console honors --verbose and --quiet; commands use it for
	// informational output, while errors always go to ui.ShowError.
	console = ui.NewUI(false, false)

	rootCmd = &cobra.Command{
		Use:   "healthpipe",
		Short: "Run the public health data pipeline",
		Long: "healthpipe ingests CDC PLACES and environmental health data, curates it with\n" +
			"quality flags, and builds the county-level dashboard marts. Snowflake is the\n" +
			"production backend; sqlite serves local development.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			console = ui.NewUI(flagVerbose, flagQuiet)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagEnvironment, "env", "e", "", "Named environment from the config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress non-essential output")
}

// loadConfig loads the pipeline configuration and applies the selected
// environment overlay.
func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagEnvironment != "" {
		if err := config.ApplyEnvironment(cfg, flagEnvironment); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// connectWarehouse builds and connects the warehouse service for cfg.
func connectWarehouse(cfg *models.Config) (*warehouse.Service, error) {
	svc, err := warehouse.NewService(warehouse.Config{
		Backend:    cfg.Backend,
		Account:    cfg.Snowflake.Account,
		Username:   cfg.Snowflake.Username,
		Password:   cfg.Snowflake.Password,
		Role:       cfg.Snowflake.Role,
		Warehouse:  cfg.Snowflake.Warehouse,
		Database:   cfg.Snowflake.Database,
		Schema:     cfg.Snowflake.Schema,
		SQLitePath: cfg.SQLite.Path,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Connect(); err != nil {
		return nil, err
	}
	return svc, nil
}
