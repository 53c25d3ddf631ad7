// Package catalog defines the warehouse objects the pipeline owns: the four
// schema namespaces and every table in them. Deployment is declarative and
// idempotent (CREATE ... IF NOT EXISTS), so re-running deploy against an
// existing database is safe.
package catalog

import (
	"fmt"
	"strings"

	"healthpipe/internal/warehouse"
)

// Schema namespaces, named as in the original warehouse layout.
const (
	SchemaLanding = "LANDING_RAW"
	SchemaCurated = "CURATED"
	SchemaMart    = "DATA_MART"
	SchemaLogging = "LOGGING"
)

// Table names.
const (
	TableRawCDCPlaces     = "RAW_CDC_PLACES_DATA"
	TableRawEnvironmental = "RAW_ENVIRONMENTAL_HEALTH_DATA"
	TableCuratedHealth    = "CURATED_HEALTH_INDICATORS"
	TableCuratedEnv       = "CURATED_ENVIRONMENTAL_DATA"
	TableDashboard        = "PUBLIC_HEALTH_DASHBOARD"
	TableRiskSummary      = "ENVIRONMENTAL_RISK_SUMMARY"
	TableExecutionLog     = "PIPELINE_EXECUTION_LOG"
	TableQualityLog       = "DATA_QUALITY_LOG"
)

// Column describes one table column in backend-neutral terms.
type Column struct {
	Name    string
	Type    warehouse.ColumnType
	NotNull bool
}

// Table describes one warehouse table.
type Table struct {
	Schema     string
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Ref renders the dialect-qualified table reference.
func (t Table) Ref(d warehouse.Dialect) string {
	return d.TableRef(t.Schema, t.Name)
}

// Tables returns every table the pipeline owns, leaf schemas first.
func Tables() []Table {
	return []Table{
		{
			Schema: SchemaLanding,
			Name:   TableRawCDCPlaces,
			Columns: []Column{
				{Name: "state_abbr", Type: warehouse.TypeString, NotNull: true},
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "measure_id", Type: warehouse.TypeString, NotNull: true},
				{Name: "measure_name", Type: warehouse.TypeString},
				{Name: "data_value", Type: warehouse.TypeFloat},
				{Name: "total_population", Type: warehouse.TypeInt},
				{Name: "latitude", Type: warehouse.TypeFloat},
				{Name: "longitude", Type: warehouse.TypeFloat},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "load_timestamp", Type: warehouse.TypeTimestamp, NotNull: true},
			},
		},
		{
			Schema: SchemaLanding,
			Name:   TableRawEnvironmental,
			Columns: []Column{
				{Name: "state_abbr", Type: warehouse.TypeString, NotNull: true},
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "facility_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "facility_address", Type: warehouse.TypeString},
				{Name: "facility_type", Type: warehouse.TypeString},
				{Name: "risk_level", Type: warehouse.TypeString},
				{Name: "air_quality_index", Type: warehouse.TypeFloat},
				{Name: "inspection_score", Type: warehouse.TypeFloat},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "load_timestamp", Type: warehouse.TypeTimestamp, NotNull: true},
			},
		},
		{
			Schema: SchemaCurated,
			Name:   TableCuratedHealth,
			Columns: []Column{
				{Name: "location_key", Type: warehouse.TypeString, NotNull: true},
				{Name: "state_abbr", Type: warehouse.TypeString, NotNull: true},
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "measure_category", Type: warehouse.TypeString, NotNull: true},
				{Name: "measure_value", Type: warehouse.TypeFloat},
				{Name: "total_population", Type: warehouse.TypeInt},
				{Name: "latitude", Type: warehouse.TypeFloat},
				{Name: "longitude", Type: warehouse.TypeFloat},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "data_quality_flag", Type: warehouse.TypeString, NotNull: true},
				{Name: "load_timestamp", Type: warehouse.TypeTimestamp, NotNull: true},
			},
			PrimaryKey: []string{"location_key", "data_year"},
		},
		{
			Schema: SchemaCurated,
			Name:   TableCuratedEnv,
			Columns: []Column{
				{Name: "location_key", Type: warehouse.TypeString, NotNull: true},
				{Name: "state_abbr", Type: warehouse.TypeString, NotNull: true},
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "facility_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "facility_address", Type: warehouse.TypeString},
				{Name: "risk_level", Type: warehouse.TypeString},
				{Name: "air_quality_index", Type: warehouse.TypeFloat},
				{Name: "inspection_score", Type: warehouse.TypeFloat},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "data_quality_flag", Type: warehouse.TypeString, NotNull: true},
				{Name: "load_timestamp", Type: warehouse.TypeTimestamp, NotNull: true},
			},
			PrimaryKey: []string{"location_key", "data_year"},
		},
		{
			Schema: SchemaMart,
			Name:   TableDashboard,
			Columns: []Column{
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "state_abbr", Type: warehouse.TypeString, NotNull: true},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "total_population", Type: warehouse.TypeInt},
				{Name: "diabetes_prevalence_rate", Type: warehouse.TypeFloat},
				{Name: "obesity_rate", Type: warehouse.TypeFloat},
				{Name: "cancer_incidence_rate", Type: warehouse.TypeFloat},
				{Name: "access_barrier_rate", Type: warehouse.TypeFloat},
				{Name: "avg_air_quality_index", Type: warehouse.TypeFloat},
				{Name: "high_risk_facility_count", Type: warehouse.TypeInt, NotNull: true},
				{Name: "last_updated", Type: warehouse.TypeTimestamp, NotNull: true},
			},
			PrimaryKey: []string{"county_name", "state_abbr", "data_year"},
		},
		{
			Schema: SchemaMart,
			Name:   TableRiskSummary,
			Columns: []Column{
				{Name: "county_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "risk_level", Type: warehouse.TypeString, NotNull: true},
				{Name: "data_year", Type: warehouse.TypeInt, NotNull: true},
				{Name: "facility_count", Type: warehouse.TypeInt, NotNull: true},
				{Name: "avg_inspection_score", Type: warehouse.TypeFloat},
				{Name: "avg_air_quality_index", Type: warehouse.TypeFloat},
				{Name: "last_updated", Type: warehouse.TypeTimestamp, NotNull: true},
			},
			PrimaryKey: []string{"county_name", "risk_level", "data_year"},
		},
		{
			Schema: SchemaLogging,
			Name:   TableExecutionLog,
			Columns: []Column{
				{Name: "execution_id", Type: warehouse.TypeString, NotNull: true},
				{Name: "procedure_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "execution_status", Type: warehouse.TypeString, NotNull: true},
				{Name: "execution_start", Type: warehouse.TypeTimestamp, NotNull: true},
				{Name: "execution_end", Type: warehouse.TypeTimestamp},
				{Name: "rows_processed", Type: warehouse.TypeInt},
				{Name: "error_message", Type: warehouse.TypeString},
			},
			PrimaryKey: []string{"execution_id"},
		},
		{
			Schema: SchemaLogging,
			Name:   TableQualityLog,
			Columns: []Column{
				{Name: "table_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "quality_check_name", Type: warehouse.TypeString, NotNull: true},
				{Name: "check_result", Type: warehouse.TypeString, NotNull: true},
				{Name: "check_value", Type: warehouse.TypeFloat},
				{Name: "threshold_value", Type: warehouse.TypeFloat},
				{Name: "check_timestamp", Type: warehouse.TypeTimestamp, NotNull: true},
			},
		},
	}
}

// Schemas returns the schema namespaces in creation order.
func Schemas() []string {
	return []string{SchemaLanding, SchemaCurated, SchemaMart, SchemaLogging}
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for t.
func CreateTableSQL(d warehouse.Dialect, t Table) string {
	var cols []string
	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", c.Name, d.ColumnType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	if len(t.PrimaryKey) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		t.Ref(d), strings.Join(cols, ",\n    "))
}
