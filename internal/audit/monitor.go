package audit

import (
	"context"
	"database/sql"
	"time"

	"healthpipe/internal/catalog"
	"healthpipe/pkg/models"
)

// failureWindow is the trailing window the hourly monitor inspects.
const failureWindow = 24 * time.Hour

// MonitorFailures counts FAILED executions in the trailing 24 hours and
// records a PASS/FAIL quality row against the execution log. Threshold is
// zero: any failure in the window fails the check.
func (l *Logger) MonitorFailures(ctx context.Context) (models.QualityLogEntry, error) {
	failed, err := l.CountFailedSince(ctx, time.Now().UTC().Add(-failureWindow))
	if err != nil {
		return models.QualityLogEntry{}, err
	}

	result := models.CheckPass
	if failed > 0 {
		result = models.CheckFail
	}

	entry := models.QualityLogEntry{
		TableName:      catalog.TableExecutionLog,
		CheckName:      "failed_executions_24h",
		CheckResult:    result,
		CheckValue:     sql.NullFloat64{Float64: float64(failed), Valid: true},
		ThresholdValue: sql.NullFloat64{Float64: 0, Valid: true},
		CheckTimestamp: time.Now().UTC(),
	}

	if err := l.RecordQuality(ctx, entry); err != nil {
		return models.QualityLogEntry{}, err
	}
	return entry, nil
}
