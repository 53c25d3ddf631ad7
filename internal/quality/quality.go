// Package quality holds the pure data-quality rules. Every function here is
// a function of its arguments only: flags are derivable from a single row's
// fields, never from cross-row state.
package quality

import (
	"strings"

	"healthpipe/pkg/models"
)

// HealthFlag classifies a raw CDC PLACES row.
func HealthFlag(row models.RawCDCPlacesRow) string {
	if strings.TrimSpace(row.CountyName) == "" || strings.TrimSpace(row.StateAbbr) == "" {
		return models.QualityInvalid
	}
	if !row.DataValue.Valid {
		return models.QualityMissing
	}
	if row.DataValue.Float64 < 0 {
		return models.QualityInvalid
	}
	if row.TotalPopulation.Valid && row.TotalPopulation.Int64 < 0 {
		return models.QualityInvalid
	}
	return models.QualityValid
}

// EnvironmentalFlag classifies a raw environmental facility row.
func EnvironmentalFlag(row models.RawEnvironmentalRow) string {
	if strings.TrimSpace(row.CountyName) == "" || strings.TrimSpace(row.FacilityName) == "" {
		return models.QualityInvalid
	}
	if !row.AirQualityIndex.Valid && !row.InspectionScore.Valid {
		return models.QualityMissing
	}
	if row.AirQualityIndex.Valid && row.AirQualityIndex.Float64 < 0 {
		return models.QualityInvalid
	}
	if row.InspectionScore.Valid && (row.InspectionScore.Float64 < 0 || row.InspectionScore.Float64 > 100) {
		return models.QualityInvalid
	}
	return models.QualityValid
}

// measureCategories maps CDC PLACES measure ids to the dashboard categories
// the mart pivots on. Unknown measures keep their id as the category.
var measureCategories = map[string]string{
	"ACCESS2":  "ACCESS",
	"DIABETES": "DIABETES",
	"OBESITY":  "OBESITY",
	"CANCER":   "CANCER",
	"CASTHMA":  "ASTHMA",
	"BPHIGH":   "HYPERTENSION",
}

// MeasureCategory returns the dashboard category for a measure id.
func MeasureCategory(measureID string) string {
	if cat, ok := measureCategories[strings.ToUpper(strings.TrimSpace(measureID))]; ok {
		return cat
	}
	return strings.ToUpper(strings.TrimSpace(measureID))
}

// EvaluateThreshold compares a check value against its threshold: at or
// below passes, within the warning band warns, above fails.
func EvaluateThreshold(value, threshold, warnBand float64) string {
	switch {
	case value <= threshold:
		return models.CheckPass
	case value <= threshold+warnBand:
		return models.CheckWarning
	default:
		return models.CheckFail
	}
}
