package pipeline

import (
	"database/sql"
	"sort"
	"time"

	"healthpipe/pkg/models"
)

// Mart aggregation is computed from VALID curated rows only and is a pure
// function of them: rebuilding from unchanged curated data produces
// identical aggregates except the last_updated column.

type dashboardKey struct {
	County string
	State  string
	Year   int
}

type riskKey struct {
	County string
	Risk   string
	Year   int
}

// AggregateDashboard rolls curated rows into PUBLIC_HEALTH_DASHBOARD rows
// grouped by (county, state, year). Measure rates pivot by category; the
// environmental columns join on (county, year).
func AggregateDashboard(health []models.CuratedHealthIndicator, env []models.CuratedEnvironmentalRecord, now time.Time) []models.DashboardRow {
	groups := make(map[dashboardKey]*models.DashboardRow)

	for _, h := range health {
		if h.DataQualityFlag != models.QualityValid {
			continue
		}
		key := dashboardKey{County: h.CountyName, State: h.StateAbbr, Year: h.DataYear}
		row, ok := groups[key]
		if !ok {
			row = &models.DashboardRow{
				CountyName:  h.CountyName,
				StateAbbr:   h.StateAbbr,
				DataYear:    h.DataYear,
				LastUpdated: now,
			}
			groups[key] = row
		}

		if h.TotalPopulation.Valid {
			if !row.TotalPopulation.Valid || h.TotalPopulation.Int64 > row.TotalPopulation.Int64 {
				row.TotalPopulation = h.TotalPopulation
			}
		}

		if !h.MeasureValue.Valid {
			continue
		}
		switch h.MeasureCategory {
		case "DIABETES":
			row.DiabetesPrevalenceRate = maxNull(row.DiabetesPrevalenceRate, h.MeasureValue)
		case "OBESITY":
			row.ObesityRate = maxNull(row.ObesityRate, h.MeasureValue)
		case "CANCER":
			row.CancerIncidenceRate = maxNull(row.CancerIncidenceRate, h.MeasureValue)
		case "ACCESS":
			row.AccessBarrierRate = maxNull(row.AccessBarrierRate, h.MeasureValue)
		}
	}

	// Environmental columns: average air quality and high-risk facility
	// count per (county, year), attached to every matching dashboard group.
	type envKey struct {
		County string
		Year   int
	}
	type envAgg struct {
		aqiSum   float64
		aqiCount int64
		highRisk int64
	}
	envGroups := make(map[envKey]*envAgg)
	for _, e := range env {
		if e.DataQualityFlag != models.QualityValid {
			continue
		}
		key := envKey{County: e.CountyName, Year: e.DataYear}
		agg, ok := envGroups[key]
		if !ok {
			agg = &envAgg{}
			envGroups[key] = agg
		}
		if e.AirQualityIndex.Valid {
			agg.aqiSum += e.AirQualityIndex.Float64
			agg.aqiCount++
		}
		if e.RiskLevel == "HIGH" {
			agg.highRisk++
		}
	}

	rows := make([]models.DashboardRow, 0, len(groups))
	for key, row := range groups {
		if agg, ok := envGroups[envKey{County: key.County, Year: key.Year}]; ok {
			if agg.aqiCount > 0 {
				row.AvgAirQualityIndex = sql.NullFloat64{Float64: agg.aqiSum / float64(agg.aqiCount), Valid: true}
			}
			row.HighRiskFacilityCount = agg.highRisk
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StateAbbr != rows[j].StateAbbr {
			return rows[i].StateAbbr < rows[j].StateAbbr
		}
		if rows[i].CountyName != rows[j].CountyName {
			return rows[i].CountyName < rows[j].CountyName
		}
		return rows[i].DataYear < rows[j].DataYear
	})
	return rows
}

// AggregateRiskSummary rolls curated environmental rows into
// ENVIRONMENTAL_RISK_SUMMARY rows grouped by (county, risk_level, year).
func AggregateRiskSummary(env []models.CuratedEnvironmentalRecord, now time.Time) []models.RiskSummaryRow {
	type agg struct {
		count    int64
		scoreSum float64
		scoreN   int64
		aqiSum   float64
		aqiN     int64
	}
	groups := make(map[riskKey]*agg)

	for _, e := range env {
		if e.DataQualityFlag != models.QualityValid {
			continue
		}
		key := riskKey{County: e.CountyName, Risk: e.RiskLevel, Year: e.DataYear}
		a, ok := groups[key]
		if !ok {
			a = &agg{}
			groups[key] = a
		}
		a.count++
		if e.InspectionScore.Valid {
			a.scoreSum += e.InspectionScore.Float64
			a.scoreN++
		}
		if e.AirQualityIndex.Valid {
			a.aqiSum += e.AirQualityIndex.Float64
			a.aqiN++
		}
	}

	rows := make([]models.RiskSummaryRow, 0, len(groups))
	for key, a := range groups {
		row := models.RiskSummaryRow{
			CountyName:    key.County,
			RiskLevel:     key.Risk,
			DataYear:      key.Year,
			FacilityCount: a.count,
			LastUpdated:   now,
		}
		if a.scoreN > 0 {
			row.AvgInspectionScore = sql.NullFloat64{Float64: a.scoreSum / float64(a.scoreN), Valid: true}
		}
		if a.aqiN > 0 {
			row.AvgAirQualityIndex = sql.NullFloat64{Float64: a.aqiSum / float64(a.aqiN), Valid: true}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CountyName != rows[j].CountyName {
			return rows[i].CountyName < rows[j].CountyName
		}
		if rows[i].RiskLevel != rows[j].RiskLevel {
			return rows[i].RiskLevel < rows[j].RiskLevel
		}
		return rows[i].DataYear < rows[j].DataYear
	})
	return rows
}

func maxNull(cur, candidate sql.NullFloat64) sql.NullFloat64 {
	if !candidate.Valid {
		return cur
	}
	if !cur.Valid || candidate.Float64 > cur.Float64 {
		return candidate
	}
	return cur
}
