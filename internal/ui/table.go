package ui

import (
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// NewTable creates a table writer configured for status output
func NewTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

// StatusCell colors an execution or check status for table display
func StatusCell(status string) string {
	switch status {
	case "SUCCESS", "PASS", "VALID":
		return color.GreenString(status)
	case "FAILED", "FAIL", "INVALID":
		return color.RedString(status)
	case "RUNNING", "WARNING", "SKIPPED", "MISSING":
		return color.YellowString(status)
	default:
		return status
	}
}
