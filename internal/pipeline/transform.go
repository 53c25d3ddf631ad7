package pipeline

import (
	"fmt"

	"healthpipe/internal/quality"
	"healthpipe/pkg/models"
)

// CurateHealth derives the curated form of a raw CDC PLACES row. The quality
// flag depends only on the row itself, so re-curating unchanged landing data
// yields identical curated rows apart from the load timestamp.
func CurateHealth(raw models.RawCDCPlacesRow) models.CuratedHealthIndicator {
	category := quality.MeasureCategory(raw.MeasureID)
	return models.CuratedHealthIndicator{
		LocationKey:     healthLocationKey(raw.StateAbbr, raw.CountyName, category),
		StateAbbr:       raw.StateAbbr,
		CountyName:      raw.CountyName,
		MeasureCategory: category,
		MeasureValue:    raw.DataValue,
		TotalPopulation: raw.TotalPopulation,
		Latitude:        raw.Latitude,
		Longitude:       raw.Longitude,
		DataYear:        raw.DataYear,
		DataQualityFlag: quality.HealthFlag(raw),
		LoadTimestamp:   raw.LoadTimestamp,
	}
}

// CurateEnvironmental derives the curated form of a raw facility row.
func CurateEnvironmental(raw models.RawEnvironmentalRow) models.CuratedEnvironmentalRecord {
	return models.CuratedEnvironmentalRecord{
		LocationKey:     envLocationKey(raw.StateAbbr, raw.CountyName, raw.FacilityName),
		StateAbbr:       raw.StateAbbr,
		CountyName:      raw.CountyName,
		FacilityName:    raw.FacilityName,
		FacilityAddress: raw.FacilityAddress,
		RiskLevel:       raw.RiskLevel,
		AirQualityIndex: raw.AirQualityIndex,
		InspectionScore: raw.InspectionScore,
		DataYear:        raw.DataYear,
		DataQualityFlag: quality.EnvironmentalFlag(raw),
		LoadTimestamp:   raw.LoadTimestamp,
	}
}

// The location key includes the measure category (or facility name): a bare
// county id would collide when a county carries multiple measures.

func healthLocationKey(state, county, category string) string {
	return fmt.Sprintf("%s|%s|%s", state, county, category)
}

func envLocationKey(state, county, facility string) string {
	return fmt.Sprintf("%s|%s|%s", state, county, facility)
}
