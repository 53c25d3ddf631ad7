package models

import (
	"database/sql"
	"time"
)

// Quality flags assigned to every curated row. Derived purely from the row's
// own field values; no cross-row state.
const (
	QualityValid   = "VALID"
	QualityInvalid = "INVALID"
	QualityMissing = "MISSING"
)

// Execution log statuses.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	// StatusSkipped never reaches the execution log; the scheduler records
	// it in memory when dependency gating blocks a stage.
	StatusSkipped = "SKIPPED"
)

// Quality check results.
const (
	CheckPass    = "PASS"
	CheckFail    = "FAIL"
	CheckWarning = "WARNING"
)

// RawCDCPlacesRow is a landed CDC PLACES row. Immutable once landed; the
// landing table is replaced wholesale on each ingestion run.
type RawCDCPlacesRow struct {
	StateAbbr       string          `db:"state_abbr"`
	CountyName      string          `db:"county_name"`
	MeasureID       string          `db:"measure_id"`
	MeasureName     string          `db:"measure_name"`
	DataValue       sql.NullFloat64 `db:"data_value"`
	TotalPopulation sql.NullInt64   `db:"total_population"`
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	DataYear        int             `db:"data_year"`
	LoadTimestamp   time.Time       `db:"load_timestamp"`
}

// RawEnvironmentalRow is a landed environmental-health facility row.
type RawEnvironmentalRow struct {
	StateAbbr       string          `db:"state_abbr"`
	CountyName      string          `db:"county_name"`
	FacilityName    string          `db:"facility_name"`
	FacilityAddress string          `db:"facility_address"`
	FacilityType    string          `db:"facility_type"`
	RiskLevel       string          `db:"risk_level"`
	AirQualityIndex sql.NullFloat64 `db:"air_quality_index"`
	InspectionScore sql.NullFloat64 `db:"inspection_score"`
	DataYear        int             `db:"data_year"`
	LoadTimestamp   time.Time       `db:"load_timestamp"`
}

// CuratedHealthIndicator is the cleaned, quality-flagged form of a CDC
// PLACES row. LocationKey plus DataYear is the natural upsert key.
type CuratedHealthIndicator struct {
	LocationKey     string          `db:"location_key"`
	StateAbbr       string          `db:"state_abbr"`
	CountyName      string          `db:"county_name"`
	MeasureCategory string          `db:"measure_category"`
	MeasureValue    sql.NullFloat64 `db:"measure_value"`
	TotalPopulation sql.NullInt64   `db:"total_population"`
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	DataYear        int             `db:"data_year"`
	DataQualityFlag string          `db:"data_quality_flag"`
	LoadTimestamp   time.Time       `db:"load_timestamp"`
}

// CuratedEnvironmentalRecord is the cleaned form of an environmental row.
type CuratedEnvironmentalRecord struct {
	LocationKey     string          `db:"location_key"`
	StateAbbr       string          `db:"state_abbr"`
	CountyName      string          `db:"county_name"`
	FacilityName    string          `db:"facility_name"`
	FacilityAddress string          `db:"facility_address"`
	RiskLevel       string          `db:"risk_level"`
	AirQualityIndex sql.NullFloat64 `db:"air_quality_index"`
	InspectionScore sql.NullFloat64 `db:"inspection_score"`
	DataYear        int             `db:"data_year"`
	DataQualityFlag string          `db:"data_quality_flag"`
	LoadTimestamp   time.Time       `db:"load_timestamp"`
}

// DashboardRow is one PUBLIC_HEALTH_DASHBOARD aggregate, keyed by
// (county_name, state_abbr, data_year).
type DashboardRow struct {
	CountyName             string          `db:"county_name"`
	StateAbbr              string          `db:"state_abbr"`
	DataYear               int             `db:"data_year"`
	TotalPopulation        sql.NullInt64   `db:"total_population"`
	DiabetesPrevalenceRate sql.NullFloat64 `db:"diabetes_prevalence_rate"`
	ObesityRate            sql.NullFloat64 `db:"obesity_rate"`
	CancerIncidenceRate    sql.NullFloat64 `db:"cancer_incidence_rate"`
	AccessBarrierRate      sql.NullFloat64 `db:"access_barrier_rate"`
	AvgAirQualityIndex     sql.NullFloat64 `db:"avg_air_quality_index"`
	HighRiskFacilityCount  int64           `db:"high_risk_facility_count"`
	LastUpdated            time.Time       `db:"last_updated"`
}

// RiskSummaryRow is one ENVIRONMENTAL_RISK_SUMMARY aggregate, keyed by
// (county_name, risk_level, data_year).
type RiskSummaryRow struct {
	CountyName         string          `db:"county_name"`
	RiskLevel          string          `db:"risk_level"`
	DataYear           int             `db:"data_year"`
	FacilityCount      int64           `db:"facility_count"`
	AvgInspectionScore sql.NullFloat64 `db:"avg_inspection_score"`
	AvgAirQualityIndex sql.NullFloat64 `db:"avg_air_quality_index"`
	LastUpdated        time.Time       `db:"last_updated"`
}

// ExecutionLogEntry is one row of LOGGING.PIPELINE_EXECUTION_LOG. Exactly one
// RUNNING insert at procedure entry and exactly one terminal update at exit,
// correlated by ExecutionID.
type ExecutionLogEntry struct {
	ExecutionID    string         `db:"execution_id"`
	ProcedureName  string         `db:"procedure_name"`
	Status         string         `db:"execution_status"`
	ExecutionStart time.Time      `db:"execution_start"`
	ExecutionEnd   sql.NullTime   `db:"execution_end"`
	RowsProcessed  sql.NullInt64  `db:"rows_processed"`
	ErrorMessage   sql.NullString `db:"error_message"`
}

// QualityLogEntry is one append-only row of LOGGING.DATA_QUALITY_LOG.
type QualityLogEntry struct {
	TableName      string          `db:"table_name"`
	CheckName      string          `db:"quality_check_name"`
	CheckResult    string          `db:"check_result"`
	CheckValue     sql.NullFloat64 `db:"check_value"`
	ThresholdValue sql.NullFloat64 `db:"threshold_value"`
	CheckTimestamp time.Time       `db:"check_timestamp"`
}
