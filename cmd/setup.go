package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"healthpipe/internal/config"
	"healthpipe/internal/ui"
	"healthpipe/internal/warehouse"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Run:   runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up healthpipe...")
	fmt.Println()

	if config.Exists() {
		overwrite, _ := ui.Confirm("Configuration already exists. Do you want to overwrite it?", false)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := config.Default()

	backend, err := ui.Select("Warehouse backend:", []string{warehouse.BackendSnowflake, warehouse.BackendSQLite})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Backend = backend

	switch backend {
	case warehouse.BackendSnowflake:
		fmt.Println()
		fmt.Println("Snowflake Configuration")
		fmt.Println("-----------------------")

		snowflakeQs := []*survey.Question{
			{
				Name: "account",
				Prompt: &survey.Input{
					Message: "Snowflake Account (e.g., xy12345.us-east-1):",
				},
				Validate: survey.Required,
			},
			{
				Name: "username",
				Prompt: &survey.Input{
					Message: "Username:",
				},
				Validate: survey.Required,
			},
			{
				Name: "password",
				Prompt: &survey.Password{
					Message: "Password:",
				},
				Validate: survey.Required,
			},
			{
				Name: "role",
				Prompt: &survey.Input{
					Message: "Role:",
					Default: "DATA_ENGINEER_ROLE",
				},
				Validate: survey.Required,
			},
			{
				Name: "warehouse",
				Prompt: &survey.Input{
					Message: "Warehouse:",
					Default: "COMPUTE_WH",
				},
				Validate: survey.Required,
			},
			{
				Name: "database",
				Prompt: &survey.Input{
					Message: "Database:",
					Default: "PUBLIC_HEALTH_MODERNIZATION_DEMO",
				},
				Validate: survey.Required,
			},
		}

		if err := survey.Ask(snowflakeQs, &cfg.Snowflake); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case warehouse.BackendSQLite:
		path, err := ui.Input("SQLite database path:", "healthpipe.db", "Relative paths are resolved against the working directory")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		cfg.SQLite.Path = path
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", config.GetConfigFile())
	fmt.Println("Next steps:")
	fmt.Println("  healthpipe deploy    Create the warehouse schemas and tables")
	fmt.Println("  healthpipe run       Run the full pipeline once")
	fmt.Println("  healthpipe schedule  Start the scheduler daemon")
}
