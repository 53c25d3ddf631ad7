package models

import (
	"fmt"
	"time"
)

// Result is the structured outcome of a pipeline procedure. It replaces the
// original string-only status channel: callers branch on the typed error
// returned alongside it, and Status carries the human-readable summary for
// operators and logs.
type Result struct {
	Procedure   string           `json:"procedure"`
	ExecutionID string           `json:"execution_id"`
	Status      string           `json:"status"`
	Rows        int64            `json:"rows_processed"`
	Counts      map[string]int64 `json:"counts,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// Duration returns the wall-clock duration of the procedure run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SuccessStatus formats the conventional "Success: ..." status line.
func SuccessStatus(format string, args ...interface{}) string {
	return "Success: " + fmt.Sprintf(format, args...)
}

// ErrorStatus formats the conventional "ERROR: ..." status line.
func ErrorStatus(format string, args ...interface{}) string {
	return "ERROR: " + fmt.Sprintf(format, args...)
}
