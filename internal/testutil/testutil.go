// Package testutil provides shared helpers for tests that need a warehouse
// service without a live backend.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

// MockWarehouse returns a warehouse service backed by sqlmock, speaking the
// dialect of the given backend. Cleanup closes the connection and asserts
// every declared expectation was met.
func MockWarehouse(t *testing.T, backend string) (*warehouse.Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}

	dialect, err := warehouse.DialectFor(backend)
	if err != nil {
		t.Fatalf("Failed to resolve dialect: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})

	return warehouse.NewServiceWithDB(db, dialect), mock
}

// NullF wraps a float64 as a valid sql.NullFloat64.
func NullF(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// NullI wraps an int64 as a valid sql.NullInt64.
func NullI(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

// TestConfig returns a config pointed at an in-memory sqlite backend with a
// single stage, suitable for exercising config and scheduler plumbing.
func TestConfig() *models.Config {
	return &models.Config{
		Backend: warehouse.BackendSQLite,
		SQLite:  models.SQLite{Path: ":memory:"},
		Sources: []models.Source{
			{Name: "CDC_PLACES", TargetTable: "RAW_CDC_PLACES_DATA"},
			{Name: "ENVIRONMENTAL", TargetTable: "RAW_ENVIRONMENTAL_HEALTH_DATA"},
		},
		Scheduler: models.Scheduler{
			Stages: []models.Stage{
				{Name: "ingest_cdc_places", Schedule: "0 2 * * *", Enabled: true},
			},
		},
	}
}
