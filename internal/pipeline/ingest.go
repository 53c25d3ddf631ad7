package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"healthpipe/internal/audit"
	"healthpipe/internal/catalog"
	"healthpipe/internal/sources"
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// Ingest replaces the landing table for a source with its staged rows.
// Landing is truncate-then-insert: raw rows are immutable and replaced
// wholesale on every run. An unknown source type fails the run without
// touching any landing table.
func (p *Pipeline) Ingest(ctx context.Context, sourceType string) (*models.Result, error) {
	run, err := p.audit.Start(ctx, ProcIngest)
	if err != nil {
		return nil, err
	}
	defer failOnPanic(ctx, run)

	res := &models.Result{
		Procedure:   ProcIngest,
		ExecutionID: run.ID,
		StartedAt:   run.StartedAt,
	}

	source, err := p.registry.Lookup(sourceType)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	stage, err := sources.OpenStage(source)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}
	defer stage.Close()

	loadedAt := time.Now().UTC()
	rows, err := p.loadLanding(ctx, source, stage, loadedAt)
	if err != nil {
		return p.fail(ctx, run, res, err)
	}

	if err := run.Succeed(ctx, rows); err != nil {
		return nil, err
	}

	res.Rows = rows
	res.FinishedAt = time.Now().UTC()
	res.Status = models.SuccessStatus("Loaded %d rows into %s from %s", rows, source.TargetTable, source.Name)
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, run *audit.Run, res *models.Result, cause error) (*models.Result, error) {
	_ = run.Fail(ctx, 0, cause)
	res.FinishedAt = time.Now().UTC()
	res.Status = models.ErrorStatus("%s", cause.Error())
	return res, cause
}

func (p *Pipeline) loadLanding(ctx context.Context, source models.Source, stage io.Reader, loadedAt time.Time) (int64, error) {
	d := p.svc.Dialect()
	target := d.TableRef(catalog.SchemaLanding, source.TargetTable)

	tx, err := p.svc.DB().BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin ingestion transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+target); err != nil {
		return 0, errors.SQLError("Failed to truncate landing table", target, err)
	}

	var count int64
	switch source.Name {
	case sources.CDCPlaces:
		rows, err := sources.ParseCDCPlaces(stage, loadedAt)
		if err != nil {
			return 0, err
		}
		insert := fmt.Sprintf(
			"INSERT INTO %s (state_abbr, county_name, measure_id, measure_name, data_value, total_population, latitude, longitude, data_year, load_timestamp) "+
				"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", target)
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, insert,
				r.StateAbbr, r.CountyName, r.MeasureID, r.MeasureName, r.DataValue,
				r.TotalPopulation, r.Latitude, r.Longitude, r.DataYear, r.LoadTimestamp); err != nil {
				return 0, errors.SQLError("Failed to insert landing row", insert, err)
			}
			count++
		}

	case sources.Environmental:
		rows, err := sources.ParseEnvironmental(stage, loadedAt)
		if err != nil {
			return 0, err
		}
		insert := fmt.Sprintf(
			"INSERT INTO %s (state_abbr, county_name, facility_name, facility_address, facility_type, risk_level, air_quality_index, inspection_score, data_year, load_timestamp) "+
				"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", target)
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, insert,
				r.StateAbbr, r.CountyName, r.FacilityName, r.FacilityAddress, r.FacilityType,
				r.RiskLevel, r.AirQualityIndex, r.InspectionScore, r.DataYear, r.LoadTimestamp); err != nil {
				return 0, errors.SQLError("Failed to insert landing row", insert, err)
			}
			count++
		}

	default:
		return 0, errors.UnknownSourceError(source.Name, p.registry.Names())
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit ingestion transaction")
	}

	return count, nil
}
