package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"healthpipe/internal/audit"
	"healthpipe/internal/ui"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline executions and quality checks",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of entries to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	auditLog := audit.NewLogger(svc)

	executions, err := auditLog.RecentExecutions(ctx, statusLimit)
	if err != nil {
		ui.ShowError(err)
		return err
	}

	ui.ShowHeader("Recent executions")
	execTable := ui.NewTable([]string{"Execution", "Procedure", "Status", "Started", "Rows", "Error"})
	for _, e := range executions {
		execTable.Append([]string{
			shortID(e.ExecutionID),
			e.ProcedureName,
			ui.StatusCell(e.Status),
			e.ExecutionStart.Format("2006-01-02 15:04:05"),
			nullInt(e.RowsProcessed),
			truncate(nullString(e.ErrorMessage), 48),
		})
	}
	execTable.Render()

	checks, err := auditLog.RecentQuality(ctx, statusLimit)
	if err != nil {
		ui.ShowError(err)
		return err
	}

	ui.ShowHeader("Recent quality checks")
	checkTable := ui.NewTable([]string{"Table", "Check", "Result", "Value", "Threshold", "Checked"})
	for _, c := range checks {
		checkTable.Append([]string{
			c.TableName,
			c.CheckName,
			ui.StatusCell(c.CheckResult),
			nullFloat(c.CheckValue),
			nullFloat(c.ThresholdValue),
			c.CheckTimestamp.Format("2006-01-02 15:04:05"),
		})
	}
	checkTable.Render()

	return nil
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%d", v.Int64)
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.4f", v.Float64)
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
