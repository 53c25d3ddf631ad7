package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthpipe/internal/audit"
	"healthpipe/internal/pipeline"
	"healthpipe/internal/sources"
	"healthpipe/internal/testutil"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

const cdcStage = `state_abbr,county_name,measure_id,measure_name,data_value,total_population,latitude,longitude,data_year
MA,Middlesex,ACCESS2,Lack of health insurance,15.2,1605899,42.4672,-71.2874,2024
MA,Essex,ACCESS2,Lack of health insurance,18.7,809829,42.6334,-70.7829,2024
`

func stageFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stage.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newPipeline(t *testing.T, srcs []models.Source) (*pipeline.Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	svc, mock := testutil.MockWarehouse(t, warehouse.BackendSnowflake)
	return pipeline.New(svc, audit.NewLogger(svc), sources.NewRegistry(srcs)), mock
}

func TestIngest(t *testing.T) {
	p, mock := newPipeline(t, []models.Source{{
		Name:        sources.CDCPlaces,
		StagePath:   stageFile(t, cdcStage),
		TargetTable: "RAW_CDC_PLACES_DATA",
	}})

	mock.ExpectExec("INSERT INTO LOGGING.PIPELINE_EXECUTION_LOG").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM LANDING_RAW.RAW_CDC_PLACES_DATA").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO LANDING_RAW.RAW_CDC_PLACES_DATA").
		WithArgs("MA", "Middlesex", "ACCESS2", "Lack of health insurance",
			15.2, int64(1605899), 42.4672, -71.2874, 2024, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO LANDING_RAW.RAW_CDC_PLACES_DATA").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE LOGGING.PIPELINE_EXECUTION_LOG SET").
		WithArgs(models.StatusSuccess, sqlmock.AnyArg(), int64(2), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := p.Ingest(context.Background(), sources.CDCPlaces)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ProcIngest, res.Procedure)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, int64(2), res.Rows)
	assert.True(t, strings.HasPrefix(res.Status, "Success:"), res.Status)
}

func TestIngestUnknownSourceFailsWithoutTouchingLanding(t *testing.T) {
	p, mock := newPipeline(t, []models.Source{{
		Name:        sources.CDCPlaces,
		TargetTable: "RAW_CDC_PLACES_DATA",
	}})

	// The run is logged RUNNING then FAILED. No landing statement runs.
	mock.ExpectExec("INSERT INTO LOGGING.PIPELINE_EXECUTION_LOG").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE LOGGING.PIPELINE_EXECUTION_LOG SET").
		WithArgs(models.StatusFailed, sqlmock.AnyArg(), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := p.Ingest(context.Background(), "WEATHER")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownSource, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), `Invalid source_type "WEATHER"`)

	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.Status, "ERROR:"), res.Status)
}

func TestIngestRollsBackOnInsertError(t *testing.T) {
	p, mock := newPipeline(t, []models.Source{{
		Name:        sources.CDCPlaces,
		StagePath:   stageFile(t, cdcStage),
		TargetTable: "RAW_CDC_PLACES_DATA",
	}})

	mock.ExpectExec("INSERT INTO LOGGING.PIPELINE_EXECUTION_LOG").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM LANDING_RAW.RAW_CDC_PLACES_DATA").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO LANDING_RAW.RAW_CDC_PLACES_DATA").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE LOGGING.PIPELINE_EXECUTION_LOG SET").
		WithArgs(models.StatusFailed, sqlmock.AnyArg(), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := p.Ingest(context.Background(), sources.CDCPlaces)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLExecution, errors.GetErrorCode(err))
}

func TestIngestMalformedStage(t *testing.T) {
	p, mock := newPipeline(t, []models.Source{{
		Name:        sources.CDCPlaces,
		StagePath:   stageFile(t, "state_abbr,county_name,measure_id,data_year\nMA,Middlesex,ACCESS2,not-a-year\n"),
		TargetTable: "RAW_CDC_PLACES_DATA",
	}})

	mock.ExpectExec("INSERT INTO LOGGING.PIPELINE_EXECUTION_LOG").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE LOGGING.PIPELINE_EXECUTION_LOG SET").
		WithArgs(models.StatusFailed, sqlmock.AnyArg(), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := p.Ingest(context.Background(), sources.CDCPlaces)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStageMalformed, errors.GetErrorCode(err))
}
