package pipeline

import (
	"context"
	"fmt"
	"time"

	"healthpipe/internal/catalog"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// BuildMart recomputes both mart tables from the current curated rows. Only
// VALID rows contribute. The write is an upsert on each mart's group key, so
// rebuilding from unchanged curated data yields identical aggregates except
// last_updated.
func (p *Pipeline) BuildMart(ctx context.Context) (*models.Result, error) {
	run, err := p.audit.Start(ctx, ProcBuildMart)
	if err != nil {
		return nil, err
	}
	defer failOnPanic(ctx, run)

	res := &models.Result{
		Procedure:   ProcBuildMart,
		ExecutionID: run.ID,
		StartedAt:   run.StartedAt,
		Counts:      make(map[string]int64),
	}

	health, env, err := p.readCurated(ctx)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	now := time.Now().UTC()
	dashboard := AggregateDashboard(health, env, now)
	risk := AggregateRiskSummary(env, now)

	if err := p.writeDashboard(ctx, dashboard); err != nil {
		return p.fail(ctx, run, res, err)
	}
	if err := p.writeRiskSummary(ctx, risk); err != nil {
		return p.fail(ctx, run, res, err)
	}

	total := int64(len(dashboard) + len(risk))
	if err := run.Succeed(ctx, total); err != nil {
		return nil, err
	}

	res.Rows = total
	res.Counts["dashboard_rows"] = int64(len(dashboard))
	res.Counts["risk_rows"] = int64(len(risk))
	res.FinishedAt = time.Now().UTC()
	res.Status = models.SuccessStatus("Built %d dashboard rows and %d risk summary rows",
		len(dashboard), len(risk))
	return res, nil
}

func (p *Pipeline) readCurated(ctx context.Context) ([]models.CuratedHealthIndicator, []models.CuratedEnvironmentalRecord, error) {
	d := p.svc.Dialect()

	var health []models.CuratedHealthIndicator
	healthQuery := fmt.Sprintf(
		"SELECT location_key, state_abbr, county_name, measure_category, measure_value, total_population, latitude, longitude, data_year, data_quality_flag, load_timestamp FROM %s",
		d.TableRef(catalog.SchemaCurated, catalog.TableCuratedHealth))
	if err := p.svc.DB().SelectContext(ctx, &health, healthQuery); err != nil {
		return nil, nil, errors.SQLError("Failed to read curated health indicators", healthQuery, err)
	}

	var env []models.CuratedEnvironmentalRecord
	envQuery := fmt.Sprintf(
		"SELECT location_key, state_abbr, county_name, facility_name, facility_address, risk_level, air_quality_index, inspection_score, data_year, data_quality_flag, load_timestamp FROM %s",
		d.TableRef(catalog.SchemaCurated, catalog.TableCuratedEnv))
	if err := p.svc.DB().SelectContext(ctx, &env, envQuery); err != nil {
		return nil, nil, errors.SQLError("Failed to read curated environmental data", envQuery, err)
	}

	return health, env, nil
}

func (p *Pipeline) writeDashboard(ctx context.Context, rows []models.DashboardRow) error {
	d := p.svc.Dialect()
	target := d.TableRef(catalog.SchemaMart, catalog.TableDashboard)

	insertCols := []string{
		"county_name", "state_abbr", "data_year", "total_population",
		"diabetes_prevalence_rate", "obesity_rate", "cancer_incidence_rate", "access_barrier_rate",
		"avg_air_quality_index", "high_risk_facility_count", "last_updated",
	}
	updateCols := []string{
		"total_population", "diabetes_prevalence_rate", "obesity_rate", "cancer_incidence_rate",
		"access_barrier_rate", "avg_air_quality_index", "high_risk_facility_count", "last_updated",
	}
	upsert := d.UpsertSQL(target, []string{"county_name", "state_abbr", "data_year"}, updateCols, insertCols)

	tx, err := p.svc.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin mart transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, upsert,
			r.CountyName, r.StateAbbr, r.DataYear, r.TotalPopulation,
			r.DiabetesPrevalenceRate, r.ObesityRate, r.CancerIncidenceRate, r.AccessBarrierRate,
			r.AvgAirQualityIndex, r.HighRiskFacilityCount, r.LastUpdated); err != nil {
			return errors.SQLError("Failed to upsert dashboard row", upsert, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit mart transaction")
	}
	return nil
}

func (p *Pipeline) writeRiskSummary(ctx context.Context, rows []models.RiskSummaryRow) error {
	d := p.svc.Dialect()
	target := d.TableRef(catalog.SchemaMart, catalog.TableRiskSummary)

	insertCols := []string{
		"county_name", "risk_level", "data_year", "facility_count",
		"avg_inspection_score", "avg_air_quality_index", "last_updated",
	}
	updateCols := []string{
		"facility_count", "avg_inspection_score", "avg_air_quality_index", "last_updated",
	}
	upsert := d.UpsertSQL(target, []string{"county_name", "risk_level", "data_year"}, updateCols, insertCols)

	tx, err := p.svc.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin mart transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, upsert,
			r.CountyName, r.RiskLevel, r.DataYear, r.FacilityCount,
			r.AvgInspectionScore, r.AvgAirQualityIndex, r.LastUpdated); err != nil {
			return errors.SQLError("Failed to upsert risk summary row", upsert, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit mart transaction")
	}
	return nil
}

// MonitorFailures runs the hourly failed-execution check under the standard
// execution-log discipline.
func (p *Pipeline) MonitorFailures(ctx context.Context) (*models.Result, error) {
	run, err := p.audit.Start(ctx, ProcMonitor)
	if err != nil {
		return nil, err
	}
	defer failOnPanic(ctx, run)

	res := &models.Result{
		Procedure:   ProcMonitor,
		ExecutionID: run.ID,
		StartedAt:   run.StartedAt,
	}

	entry, err := p.audit.MonitorFailures(ctx)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	if err := run.Succeed(ctx, 1); err != nil {
		return nil, err
	}

	res.Rows = 1
	res.FinishedAt = time.Now().UTC()
	res.Status = models.SuccessStatus("Failure check %s: %v failed executions in the last 24h",
		entry.CheckResult, entry.CheckValue.Float64)
	return res, nil
}
