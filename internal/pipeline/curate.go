package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"healthpipe/internal/catalog"
	"healthpipe/internal/quality"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// Curation refresh thresholds for the invalid-row-rate quality check.
const (
	invalidRateThreshold = 0.10
	invalidRateWarnBand  = 0.10
)

// Curate cleans both landing tables into the curated tables, tagging every
// row with its data-quality flag. The write is an upsert keyed on
// (location_key, data_year), so partial reruns never lose data. fullRefresh
// empties the curated tables first; it exists for backfills only.
func (p *Pipeline) Curate(ctx context.Context, fullRefresh bool) (*models.Result, error) {
	run, err := p.audit.Start(ctx, ProcCurate)
	if err != nil {
		return nil, err
	}
	defer failOnPanic(ctx, run)

	res := &models.Result{
		Procedure:   ProcCurate,
		ExecutionID: run.ID,
		StartedAt:   run.StartedAt,
		Counts:      make(map[string]int64),
	}

	healthRows, err := p.curateHealth(ctx, fullRefresh)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	envRows, err := p.curateEnvironmental(ctx, fullRefresh)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	total := int64(len(healthRows) + len(envRows))
	if err := run.Succeed(ctx, total); err != nil {
		return nil, err
	}

	// Quality failures are reported, never fatal: the pipeline continues.
	p.recordInvalidRate(ctx, catalog.TableCuratedHealth, healthFlags(healthRows))
	p.recordInvalidRate(ctx, catalog.TableCuratedEnv, envFlags(envRows))

	res.Rows = total
	res.Counts["health_rows"] = int64(len(healthRows))
	res.Counts["env_rows"] = int64(len(envRows))
	res.FinishedAt = time.Now().UTC()
	res.Status = models.SuccessStatus("Processed %d health indicator rows and %d environmental rows",
		len(healthRows), len(envRows))
	return res, nil
}

func (p *Pipeline) curateHealth(ctx context.Context, fullRefresh bool) ([]models.CuratedHealthIndicator, error) {
	d := p.svc.Dialect()
	source := d.TableRef(catalog.SchemaLanding, catalog.TableRawCDCPlaces)
	target := d.TableRef(catalog.SchemaCurated, catalog.TableCuratedHealth)

	var raw []models.RawCDCPlacesRow
	query := fmt.Sprintf(
		"SELECT state_abbr, county_name, measure_id, measure_name, data_value, total_population, latitude, longitude, data_year, load_timestamp FROM %s",
		source)
	if err := p.svc.DB().SelectContext(ctx, &raw, query); err != nil {
		return nil, errors.SQLError("Failed to read landing table", query, err)
	}

	curated := make([]models.CuratedHealthIndicator, 0, len(raw))
	now := time.Now().UTC()
	for _, r := range raw {
		row := CurateHealth(r)
		row.LoadTimestamp = now
		curated = append(curated, row)
	}

	insertCols := []string{
		"location_key", "state_abbr", "county_name", "measure_category", "measure_value",
		"total_population", "latitude", "longitude", "data_year", "data_quality_flag", "load_timestamp",
	}
	updateCols := []string{
		"state_abbr", "county_name", "measure_category", "measure_value",
		"total_population", "latitude", "longitude", "data_quality_flag", "load_timestamp",
	}
	upsert := d.UpsertSQL(target, []string{"location_key", "data_year"}, updateCols, insertCols)

	err := p.writeCurated(ctx, target, fullRefresh, upsert, len(curated), func(tx *sqlx.Tx, i int) error {
		r := curated[i]
		_, err := tx.ExecContext(ctx, upsert,
			r.LocationKey, r.StateAbbr, r.CountyName, r.MeasureCategory, r.MeasureValue,
			r.TotalPopulation, r.Latitude, r.Longitude, r.DataYear, r.DataQualityFlag, r.LoadTimestamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return curated, nil
}

func (p *Pipeline) curateEnvironmental(ctx context.Context, fullRefresh bool) ([]models.CuratedEnvironmentalRecord, error) {
	d := p.svc.Dialect()
	source := d.TableRef(catalog.SchemaLanding, catalog.TableRawEnvironmental)
	target := d.TableRef(catalog.SchemaCurated, catalog.TableCuratedEnv)

	var raw []models.RawEnvironmentalRow
	query := fmt.Sprintf(
		"SELECT state_abbr, county_name, facility_name, facility_address, facility_type, risk_level, air_quality_index, inspection_score, data_year, load_timestamp FROM %s",
		source)
	if err := p.svc.DB().SelectContext(ctx, &raw, query); err != nil {
		return nil, errors.SQLError("Failed to read landing table", query, err)
	}

	curated := make([]models.CuratedEnvironmentalRecord, 0, len(raw))
	now := time.Now().UTC()
	for _, r := range raw {
		row := CurateEnvironmental(r)
		row.LoadTimestamp = now
		curated = append(curated, row)
	}

	insertCols := []string{
		"location_key", "state_abbr", "county_name", "facility_name", "facility_address",
		"risk_level", "air_quality_index", "inspection_score", "data_year", "data_quality_flag", "load_timestamp",
	}
	updateCols := []string{
		"state_abbr", "county_name", "facility_name", "facility_address",
		"risk_level", "air_quality_index", "inspection_score", "data_quality_flag", "load_timestamp",
	}
	upsert := d.UpsertSQL(target, []string{"location_key", "data_year"}, updateCols, insertCols)

	err := p.writeCurated(ctx, target, fullRefresh, upsert, len(curated), func(tx *sqlx.Tx, i int) error {
		r := curated[i]
		_, err := tx.ExecContext(ctx, upsert,
			r.LocationKey, r.StateAbbr, r.CountyName, r.FacilityName, r.FacilityAddress,
			r.RiskLevel, r.AirQualityIndex, r.InspectionScore, r.DataYear, r.DataQualityFlag, r.LoadTimestamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return curated, nil
}

func (p *Pipeline) writeCurated(ctx context.Context, target string, fullRefresh bool, upsert string, n int, exec func(tx *sqlx.Tx, i int) error) error {
	tx, err := p.svc.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin curation transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if fullRefresh {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+target); err != nil {
			return errors.SQLError("Failed to empty curated table for full refresh", target, err)
		}
	}

	for i := 0; i < n; i++ {
		if err := exec(tx, i); err != nil {
			return errors.SQLError("Failed to upsert curated row", upsert, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit curation transaction")
	}
	return nil
}

func (p *Pipeline) recordInvalidRate(ctx context.Context, table string, flags []string) {
	if len(flags) == 0 {
		return
	}
	var invalid int
	for _, f := range flags {
		if f != models.QualityValid {
			invalid++
		}
	}
	rate := float64(invalid) / float64(len(flags))

	_ = p.audit.RecordQuality(ctx, models.QualityLogEntry{
		TableName:      table,
		CheckName:      "invalid_row_rate",
		CheckResult:    quality.EvaluateThreshold(rate, invalidRateThreshold, invalidRateWarnBand),
		CheckValue:     sql.NullFloat64{Float64: rate, Valid: true},
		ThresholdValue: sql.NullFloat64{Float64: invalidRateThreshold, Valid: true},
	})
}

func healthFlags(rows []models.CuratedHealthIndicator) []string {
	flags := make([]string, len(rows))
	for i, r := range rows {
		flags[i] = r.DataQualityFlag
	}
	return flags
}

func envFlags(rows []models.CuratedEnvironmentalRecord) []string {
	flags := make([]string, len(rows))
	for i, r := range rows {
		flags[i] = r.DataQualityFlag
	}
	return flags
}
