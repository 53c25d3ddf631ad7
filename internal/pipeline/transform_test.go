package pipeline_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healthpipe/internal/pipeline"
	"healthpipe/pkg/models"
)

func TestCurateHealth(t *testing.T) {
	loaded := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	raw := models.RawCDCPlacesRow{
		StateAbbr:       "MA",
		CountyName:      "Middlesex",
		MeasureID:       "ACCESS2",
		MeasureName:     "Lack of health insurance",
		DataValue:       sql.NullFloat64{Float64: 15.2, Valid: true},
		TotalPopulation: sql.NullInt64{Int64: 1605899, Valid: true},
		Latitude:        sql.NullFloat64{Float64: 42.4672, Valid: true},
		Longitude:       sql.NullFloat64{Float64: -71.2874, Valid: true},
		DataYear:        2024,
		LoadTimestamp:   loaded,
	}

	curated := pipeline.CurateHealth(raw)

	assert.Equal(t, "MA|Middlesex|ACCESS", curated.LocationKey)
	assert.Equal(t, "ACCESS", curated.MeasureCategory)
	assert.Equal(t, models.QualityValid, curated.DataQualityFlag)
	assert.Equal(t, raw.DataValue, curated.MeasureValue)
	assert.Equal(t, raw.TotalPopulation, curated.TotalPopulation)
	assert.Equal(t, 2024, curated.DataYear)
	assert.Equal(t, loaded, curated.LoadTimestamp)
}

func TestCurateHealthFlagsNullValueAsMissing(t *testing.T) {
	raw := models.RawCDCPlacesRow{
		StateAbbr:  "MA",
		CountyName: "Essex",
		MeasureID:  "DIABETES",
		DataYear:   2024,
	}

	curated := pipeline.CurateHealth(raw)
	assert.Equal(t, models.QualityMissing, curated.DataQualityFlag)
	assert.Equal(t, "MA|Essex|DIABETES", curated.LocationKey)
}

func TestCurateHealthUnknownMeasureKeepsID(t *testing.T) {
	raw := models.RawCDCPlacesRow{
		StateAbbr:  "MA",
		CountyName: "Suffolk",
		MeasureID:  "stroke",
		DataValue:  sql.NullFloat64{Float64: 3.1, Valid: true},
		DataYear:   2024,
	}

	curated := pipeline.CurateHealth(raw)
	assert.Equal(t, "STROKE", curated.MeasureCategory)
	assert.Equal(t, "MA|Suffolk|STROKE", curated.LocationKey)
}

func TestCurateEnvironmental(t *testing.T) {
	loaded := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	raw := models.RawEnvironmentalRow{
		StateAbbr:       "MA",
		CountyName:      "Worcester",
		FacilityName:    "Acme Chemical",
		FacilityAddress: "17 Mill Road, Worcester MA",
		FacilityType:    "INDUSTRIAL",
		RiskLevel:       "HIGH",
		AirQualityIndex: sql.NullFloat64{Float64: 82.5, Valid: true},
		InspectionScore: sql.NullFloat64{Float64: 71, Valid: true},
		DataYear:        2024,
		LoadTimestamp:   loaded,
	}

	curated := pipeline.CurateEnvironmental(raw)

	assert.Equal(t, "MA|Worcester|Acme Chemical", curated.LocationKey)
	assert.Equal(t, models.QualityValid, curated.DataQualityFlag)
	assert.Equal(t, "HIGH", curated.RiskLevel)
	assert.Equal(t, raw.AirQualityIndex, curated.AirQualityIndex)
	assert.Equal(t, loaded, curated.LoadTimestamp)
}

func TestCurateEnvironmentalMissingMetrics(t *testing.T) {
	raw := models.RawEnvironmentalRow{
		StateAbbr:    "MA",
		CountyName:   "Worcester",
		FacilityName: "Shuttered Plant",
		DataYear:     2024,
	}

	curated := pipeline.CurateEnvironmental(raw)
	assert.Equal(t, models.QualityMissing, curated.DataQualityFlag)
}

func TestCurateIsDeterministic(t *testing.T) {
	raw := models.RawCDCPlacesRow{
		StateAbbr:  "MA",
		CountyName: "Middlesex",
		MeasureID:  "BPHIGH",
		DataValue:  sql.NullFloat64{Float64: 28.4, Valid: true},
		DataYear:   2024,
	}

	assert.Equal(t, pipeline.CurateHealth(raw), pipeline.CurateHealth(raw))
}
