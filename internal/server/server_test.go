package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthpipe/internal/audit"
	"healthpipe/internal/masking"
	"healthpipe/internal/scheduler"
	"healthpipe/internal/server"
	"healthpipe/internal/testutil"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

func newServer(t *testing.T, sched *scheduler.Scheduler) (*server.Server, sqlmock.Sqlmock) {
	t.Helper()
	svc, mock := testutil.MockWarehouse(t, warehouse.BackendSnowflake)
	return server.New(":0", svc, audit.NewLogger(svc), sched), mock
}

func get(t *testing.T, srv *server.Server, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, nil)

	rec := get(t, srv, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, warehouse.BackendSnowflake, body["backend"])
}

func TestHealthzDegraded(t *testing.T) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dialect, err := warehouse.DialectFor(warehouse.BackendSnowflake)
	require.NoError(t, err)
	svc := warehouse.NewServiceWithDB(db, dialect)
	srv := server.New(":0", svc, audit.NewLogger(svc), nil)

	mock.ExpectPing().WillReturnError(assert.AnError)

	rec := get(t, srv, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestRuns(t *testing.T) {
	srv, mock := newServer(t, nil)

	started := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM LOGGING.PIPELINE_EXECUTION_LOG ORDER BY execution_start DESC").
		WillReturnRows(sqlmock.NewRows([]string{
			"execution_id", "procedure_name", "execution_status",
			"execution_start", "execution_end", "rows_processed", "error_message",
		}).
			AddRow("run-1", "SP_INGEST_RAW_DATA", models.StatusSuccess, started, started.Add(time.Minute), 120, nil).
			AddRow("run-2", "SP_BUILD_DATAMART", models.StatusRunning, started, nil, nil, nil))

	rec := get(t, srv, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "run-1", body[0]["execution_id"])
	assert.Equal(t, float64(120), body[0]["rows_processed"])
	// The RUNNING row has no terminal fields yet.
	assert.NotContains(t, body[1], "finished_at")
	assert.NotContains(t, body[1], "rows_processed")
}

func TestStagesWithoutScheduler(t *testing.T) {
	srv, _ := newServer(t, nil)

	rec := get(t, srv, "/api/stages", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Scheduler is not running", body["error"])
}

func TestStages(t *testing.T) {
	sched, err := scheduler.New(
		[]models.Stage{{Name: "curate", Schedule: "30 2 * * *", Enabled: true}},
		map[string]scheduler.StageFunc{
			"curate": func(ctx context.Context) (*models.Result, error) {
				return &models.Result{Procedure: "curate"}, nil
			},
		})
	require.NoError(t, err)

	srv, _ := newServer(t, sched)

	rec := get(t, srv, "/api/stages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "curate", body[0]["name"])
	assert.Equal(t, "30 2 * * *", body[0]["schedule"])
}

func dashboardRows() *sqlmock.Rows {
	updated := time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"county_name", "state_abbr", "data_year", "total_population",
		"diabetes_prevalence_rate", "obesity_rate", "cancer_incidence_rate",
		"access_barrier_rate", "avg_air_quality_index", "high_risk_facility_count", "last_updated",
	}).AddRow("Middlesex", "MA", 2024, 1605899, 9.3, nil, nil, 15.2, 70.0, 1, updated)
}

func TestDashboardPublicRoleRoundsPopulation(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("SELECT .+ FROM DATA_MART.PUBLIC_HEALTH_DASHBOARD").
		WillReturnRows(dashboardRows())

	rec := get(t, srv, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Middlesex", body[0]["county"])
	// No role header means public visibility: nearest thousand.
	assert.Equal(t, float64(1606000), body[0]["population"])
	assert.Equal(t, 15.2, body[0]["access_barrier_rate"])
}

func TestDashboardEngineerRoleSeesExactPopulation(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("SELECT .+ FROM DATA_MART.PUBLIC_HEALTH_DASHBOARD").
		WillReturnRows(dashboardRows())

	rec := get(t, srv, "/api/dashboard", map[string]string{
		server.RoleHeader: masking.RoleNameEngineer,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, float64(1605899), body[0]["population"])
}

func facilityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"location_key", "state_abbr", "county_name", "facility_name", "facility_address",
		"risk_level", "air_quality_index", "inspection_score", "data_year", "data_quality_flag",
	}).AddRow("MA|Worcester|Acme Chemical", "MA", "Worcester", "Acme Chemical",
		"12 Industrial Way, Worcester", "HIGH", 88.0, 61.5, 2024, models.QualityValid)
}

func TestFacilitiesAddressMasking(t *testing.T) {
	cases := []struct {
		name    string
		role    string
		address string
	}{
		{"public gets redaction token", "", "[REDACTED]"},
		{"analyst gets truncated address", masking.RoleNameAnalyst, "12 Industr*** [MASKED] ***"},
		{"engineer sees raw address", masking.RoleNameEngineer, "12 Industrial Way, Worcester"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			srv, mock := newServer(t, nil)
			mock.ExpectQuery("SELECT .+ FROM CURATED.CURATED_ENVIRONMENTAL_DATA").
				WillReturnRows(facilityRows())

			header := map[string]string{}
			if tt.role != "" {
				header[server.RoleHeader] = tt.role
			}
			rec := get(t, srv, "/api/facilities", header)
			require.Equal(t, http.StatusOK, rec.Code)

			var body []map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body, 1)
			assert.Equal(t, "Acme Chemical", body[0]["facility_name"])
			assert.Equal(t, tt.address, body[0]["facility_address"])
			assert.Equal(t, 88.0, body[0]["air_quality_index"])
		})
	}
}

func indicatorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"location_key", "state_abbr", "county_name", "measure_category", "measure_value",
		"total_population", "latitude", "longitude", "data_year", "data_quality_flag",
	}).AddRow("MA|Middlesex|ACCESS", "MA", "Middlesex", "ACCESS", 15.2,
		1605899, 42.481234, -71.394567, 2024, models.QualityValid)
}

func TestIndicatorsPublicRoleDropsCoordinates(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("SELECT .+ FROM CURATED.CURATED_HEALTH_INDICATORS").
		WillReturnRows(indicatorRows())

	rec := get(t, srv, "/api/indicators", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "ACCESS", body[0]["measure_category"])
	assert.Equal(t, 15.2, body[0]["measure_value"])
	assert.NotContains(t, body[0], "latitude")
	assert.NotContains(t, body[0], "longitude")
}

func TestIndicatorsAnalystRoleRoundsCoordinates(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("SELECT .+ FROM CURATED.CURATED_HEALTH_INDICATORS").
		WillReturnRows(indicatorRows())

	rec := get(t, srv, "/api/indicators", map[string]string{
		server.RoleHeader: masking.RoleNameAnalyst,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, 42.48, body[0]["latitude"])
	assert.Equal(t, -71.39, body[0]["longitude"])
}

func TestIndicatorsEngineerRoleSeesRawCoordinates(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("SELECT .+ FROM CURATED.CURATED_HEALTH_INDICATORS").
		WillReturnRows(indicatorRows())

	rec := get(t, srv, "/api/indicators", map[string]string{
		server.RoleHeader: masking.RoleNameEngineer,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, 42.481234, body[0]["latitude"])
	assert.Equal(t, -71.394567, body[0]["longitude"])
}

func TestLimitParamCapsAt500(t *testing.T) {
	srv, mock := newServer(t, nil)
	mock.ExpectQuery("LIMIT 500").
		WillReturnRows(sqlmock.NewRows([]string{
			"execution_id", "procedure_name", "execution_status",
			"execution_start", "execution_end", "rows_processed", "error_message",
		}))

	rec := get(t, srv, "/api/runs?limit=9999", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
