// Package audit owns the LOGGING schema: the execution log that tracks every
// procedure invocation and the append-only data-quality log. Runs are
// correlated by a generated execution id, never by (name, start-timestamp).
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"healthpipe/internal/catalog"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// Logger writes and reads the pipeline audit trail.
type Logger struct {
	svc *warehouse.Service
}

// NewLogger creates an audit logger over the warehouse service.
func NewLogger(svc *warehouse.Service) *Logger {
	return &Logger{svc: svc}
}

func (l *Logger) executionLog() string {
	return l.svc.Dialect().TableRef(catalog.SchemaLogging, catalog.TableExecutionLog)
}

func (l *Logger) qualityLog() string {
	return l.svc.Dialect().TableRef(catalog.SchemaLogging, catalog.TableQualityLog)
}

// Run is one in-flight procedure invocation. Exactly one terminal update is
// written, even when the caller both fails and defers a finish.
type Run struct {
	ID        string
	Procedure string
	StartedAt time.Time

	logger   *Logger
	finished bool
}

// Start inserts the RUNNING entry for a procedure invocation and returns the
// run handle used to write the terminal state.
func (l *Logger) Start(ctx context.Context, procedure string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Procedure: procedure,
		StartedAt: time.Now().UTC(),
		logger:    l,
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (execution_id, procedure_name, execution_status, execution_start) VALUES (?, ?, ?, ?)",
		l.executionLog())

	if _, err := l.svc.DB().ExecContext(ctx, query, run.ID, procedure, models.StatusRunning, run.StartedAt); err != nil {
		return nil, errors.SQLError("Failed to insert execution log entry", query, err).
			WithContext("procedure", procedure)
	}

	return run, nil
}

// Succeed writes the SUCCESS terminal update.
func (r *Run) Succeed(ctx context.Context, rowsProcessed int64) error {
	return r.finish(ctx, models.StatusSuccess, rowsProcessed, "")
}

// Fail writes the FAILED terminal update with the error message.
func (r *Run) Fail(ctx context.Context, rowsProcessed int64, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return r.finish(ctx, models.StatusFailed, rowsProcessed, msg)
}

func (r *Run) finish(ctx context.Context, status string, rows int64, errMsg string) error {
	if r.finished {
		return nil
	}
	r.finished = true

	query := fmt.Sprintf(
		"UPDATE %s SET execution_status = ?, execution_end = ?, rows_processed = ?, error_message = ? WHERE execution_id = ?",
		r.logger.executionLog())

	var msg sql.NullString
	if errMsg != "" {
		msg = sql.NullString{String: errMsg, Valid: true}
	}

	if _, err := r.logger.svc.DB().ExecContext(ctx, query,
		status, time.Now().UTC(), rows, msg, r.ID); err != nil {
		return errors.SQLError("Failed to update execution log entry", query, err).
			WithContext("execution_id", r.ID)
	}

	return nil
}

// RecordQuality appends a data-quality log row.
func (l *Logger) RecordQuality(ctx context.Context, entry models.QualityLogEntry) error {
	if entry.CheckTimestamp.IsZero() {
		entry.CheckTimestamp = time.Now().UTC()
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (table_name, quality_check_name, check_result, check_value, threshold_value, check_timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		l.qualityLog())

	if _, err := l.svc.DB().ExecContext(ctx, query,
		entry.TableName, entry.CheckName, entry.CheckResult,
		entry.CheckValue, entry.ThresholdValue, entry.CheckTimestamp); err != nil {
		return errors.SQLError("Failed to insert quality log entry", query, err).
			WithContext("check", entry.CheckName)
	}

	return nil
}

// RecentExecutions returns the most recent execution log entries.
func (l *Logger) RecentExecutions(ctx context.Context, limit int) ([]models.ExecutionLogEntry, error) {
	query := fmt.Sprintf(
		"SELECT execution_id, procedure_name, execution_status, execution_start, execution_end, rows_processed, error_message "+
			"FROM %s ORDER BY execution_start DESC LIMIT %d",
		l.executionLog(), limit)

	var entries []models.ExecutionLogEntry
	if err := l.svc.DB().SelectContext(ctx, &entries, query); err != nil {
		return nil, errors.SQLError("Failed to read execution log", query, err)
	}
	return entries, nil
}

// RecentQuality returns the most recent quality log entries.
func (l *Logger) RecentQuality(ctx context.Context, limit int) ([]models.QualityLogEntry, error) {
	query := fmt.Sprintf(
		"SELECT table_name, quality_check_name, check_result, check_value, threshold_value, check_timestamp "+
			"FROM %s ORDER BY check_timestamp DESC LIMIT %d",
		l.qualityLog(), limit)

	var entries []models.QualityLogEntry
	if err := l.svc.DB().SelectContext(ctx, &entries, query); err != nil {
		return nil, errors.SQLError("Failed to read quality log", query, err)
	}
	return entries, nil
}

// LatestRun returns the most recent execution log entry for a procedure, or
// nil when the procedure has never run.
func (l *Logger) LatestRun(ctx context.Context, procedure string) (*models.ExecutionLogEntry, error) {
	query := fmt.Sprintf(
		"SELECT execution_id, procedure_name, execution_status, execution_start, execution_end, rows_processed, error_message "+
			"FROM %s WHERE procedure_name = ? ORDER BY execution_start DESC LIMIT 1",
		l.executionLog())

	var entry models.ExecutionLogEntry
	err := l.svc.DB().GetContext(ctx, &entry, query, procedure)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.SQLError("Failed to read latest run", query, err).
			WithContext("procedure", procedure)
	}
	return &entry, nil
}

// CountFailedSince counts FAILED executions that started after the cutoff.
func (l *Logger) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE execution_status = ? AND execution_start >= ?",
		l.executionLog())

	var count int64
	if err := l.svc.DB().GetContext(ctx, &count, query, models.StatusFailed, since); err != nil {
		return 0, errors.SQLError("Failed to count failed executions", query, err)
	}
	return count, nil
}
