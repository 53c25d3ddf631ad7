package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"healthpipe/internal/audit"
	"healthpipe/internal/catalog"
	"healthpipe/internal/pipeline"
	"healthpipe/internal/sources"
	"healthpipe/internal/ui"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run an end-to-end smoke test against a throwaway sqlite database",
	Long: `Run the full pipeline against a temporary sqlite database using the embedded
sample data, then check that every stage produced the expected tables, rows
and log entries. Exits non-zero when any check fails.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "healthpipe-verify-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	svc, err := warehouse.NewService(warehouse.Config{
		Backend:    warehouse.BackendSQLite,
		SQLitePath: filepath.Join(dir, "verify.db"),
	})
	if err != nil {
		return err
	}
	if err := svc.Connect(); err != nil {
		return err
	}
	defer svc.Close()

	cfg := defaultVerifyConfig()
	registry := sources.NewRegistry(cfg.Sources)
	auditLog := audit.NewLogger(svc)
	pipe := pipeline.New(svc, auditLog, registry)

	ui.ShowHeader("Pipeline verification")

	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			console.Printf("  %s %s: %v\n", ui.ColorError("FAIL"), name, err)
			return
		}
		console.Printf("  %s %s\n", ui.ColorSuccess("PASS"), name)
	}

	check("deploy warehouse objects", catalog.Deploy(ctx, svc))

	for _, name := range registry.Names() {
		_, err := pipe.Ingest(ctx, name)
		check(fmt.Sprintf("ingest %s", name), err)
	}

	// Unknown sources must fail cleanly and leave a FAILED log entry.
	if _, err := pipe.Ingest(ctx, "NOT_A_SOURCE"); err == nil {
		check("reject unknown source", fmt.Errorf("expected an error for an unknown source type"))
	} else {
		check("reject unknown source", nil)
	}

	_, err = pipe.Curate(ctx, false)
	check("curate landed data", err)

	_, err = pipe.BuildMart(ctx)
	check("build data mart", err)

	_, err = pipe.MonitorFailures(ctx)
	check("monitor failures", err)

	check("curated rows present", verifyCount(ctx, svc, catalog.SchemaCurated, catalog.TableCuratedHealth))
	check("dashboard rows present", verifyCount(ctx, svc, catalog.SchemaMart, catalog.TableDashboard))
	check("risk summary rows present", verifyCount(ctx, svc, catalog.SchemaMart, catalog.TableRiskSummary))
	check("execution log populated", verifyCount(ctx, svc, catalog.SchemaLogging, catalog.TableExecutionLog))
	check("unknown source logged as FAILED", verifyFailedIngest(ctx, auditLog))

	console.Println()
	if failures > 0 {
		err := fmt.Errorf("%d verification check(s) failed", failures)
		ui.ShowError(err)
		return err
	}
	ui.ShowSuccess("All verification checks passed")
	return nil
}

func defaultVerifyConfig() *models.Config {
	return &models.Config{
		Backend: warehouse.BackendSQLite,
		Sources: []models.Source{
			{Name: sources.CDCPlaces, TargetTable: catalog.TableRawCDCPlaces},
			{Name: sources.Environmental, TargetTable: catalog.TableRawEnvironmental},
		},
	}
}

func verifyCount(ctx context.Context, svc *warehouse.Service, schema, table string) error {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", svc.Dialect().TableRef(schema, table))
	var count int64
	if err := svc.DB().GetContext(ctx, &count, query); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("table %s is empty", table)
	}
	return nil
}

func verifyFailedIngest(ctx context.Context, auditLog *audit.Logger) error {
	entries, err := auditLog.RecentExecutions(ctx, 50)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ProcedureName == pipeline.ProcIngest && e.Status == models.StatusFailed {
			return nil
		}
	}
	return fmt.Errorf("no FAILED ingestion found in the execution log")
}
