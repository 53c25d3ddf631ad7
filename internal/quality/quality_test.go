package quality

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"healthpipe/pkg/models"
)

func TestHealthFlag(t *testing.T) {
	valid := models.RawCDCPlacesRow{
		StateAbbr:  "MA",
		CountyName: "Middlesex",
		MeasureID:  "DIABETES",
		DataValue:  sql.NullFloat64{Float64: 9.3, Valid: true},
	}

	tests := []struct {
		name     string
		mutate   func(*models.RawCDCPlacesRow)
		expected string
	}{
		{
			name:     "complete row is valid",
			mutate:   func(r *models.RawCDCPlacesRow) {},
			expected: models.QualityValid,
		},
		{
			name:     "empty county is invalid",
			mutate:   func(r *models.RawCDCPlacesRow) { r.CountyName = "  " },
			expected: models.QualityInvalid,
		},
		{
			name:     "empty state is invalid",
			mutate:   func(r *models.RawCDCPlacesRow) { r.StateAbbr = "" },
			expected: models.QualityInvalid,
		},
		{
			name:     "null data value is missing",
			mutate:   func(r *models.RawCDCPlacesRow) { r.DataValue = sql.NullFloat64{} },
			expected: models.QualityMissing,
		},
		{
			name:     "negative data value is invalid",
			mutate:   func(r *models.RawCDCPlacesRow) { r.DataValue.Float64 = -1 },
			expected: models.QualityInvalid,
		},
		{
			name: "negative population is invalid",
			mutate: func(r *models.RawCDCPlacesRow) {
				r.TotalPopulation = sql.NullInt64{Int64: -5, Valid: true}
			},
			expected: models.QualityInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := valid
			tt.mutate(&row)
			assert.Equal(t, tt.expected, HealthFlag(row))
		})
	}
}

func TestEnvironmentalFlag(t *testing.T) {
	valid := models.RawEnvironmentalRow{
		StateAbbr:       "MA",
		CountyName:      "Essex",
		FacilityName:    "North Shore Water Treatment",
		AirQualityIndex: sql.NullFloat64{Float64: 42, Valid: true},
		InspectionScore: sql.NullFloat64{Float64: 88, Valid: true},
	}

	tests := []struct {
		name     string
		mutate   func(*models.RawEnvironmentalRow)
		expected string
	}{
		{
			name:     "complete row is valid",
			mutate:   func(r *models.RawEnvironmentalRow) {},
			expected: models.QualityValid,
		},
		{
			name:     "empty facility name is invalid",
			mutate:   func(r *models.RawEnvironmentalRow) { r.FacilityName = "" },
			expected: models.QualityInvalid,
		},
		{
			name: "both metrics null is missing",
			mutate: func(r *models.RawEnvironmentalRow) {
				r.AirQualityIndex = sql.NullFloat64{}
				r.InspectionScore = sql.NullFloat64{}
			},
			expected: models.QualityMissing,
		},
		{
			name: "one metric present is still valid",
			mutate: func(r *models.RawEnvironmentalRow) {
				r.InspectionScore = sql.NullFloat64{}
			},
			expected: models.QualityValid,
		},
		{
			name:     "negative air quality index is invalid",
			mutate:   func(r *models.RawEnvironmentalRow) { r.AirQualityIndex.Float64 = -3 },
			expected: models.QualityInvalid,
		},
		{
			name:     "inspection score above 100 is invalid",
			mutate:   func(r *models.RawEnvironmentalRow) { r.InspectionScore.Float64 = 101 },
			expected: models.QualityInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := valid
			tt.mutate(&row)
			assert.Equal(t, tt.expected, EnvironmentalFlag(row))
		})
	}
}

func TestMeasureCategory(t *testing.T) {
	tests := []struct {
		measureID string
		expected  string
	}{
		{"ACCESS2", "ACCESS"},
		{"DIABETES", "DIABETES"},
		{"OBESITY", "OBESITY"},
		{"CANCER", "CANCER"},
		{"CASTHMA", "ASTHMA"},
		{"BPHIGH", "HYPERTENSION"},
		{"access2", "ACCESS"},
		{" CANCER ", "CANCER"},
		{"NEWMEASURE", "NEWMEASURE"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MeasureCategory(tt.measureID), "measure %q", tt.measureID)
	}
}

func TestEvaluateThreshold(t *testing.T) {
	assert.Equal(t, models.CheckPass, EvaluateThreshold(0.05, 0.10, 0.10))
	assert.Equal(t, models.CheckPass, EvaluateThreshold(0.10, 0.10, 0.10))
	assert.Equal(t, models.CheckWarning, EvaluateThreshold(0.15, 0.10, 0.10))
	assert.Equal(t, models.CheckFail, EvaluateThreshold(0.25, 0.10, 0.10))
}
