package sources

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// ParseCDCPlaces reads staged CDC PLACES rows. Expected header:
// state_abbr,county_name,measure_id,measure_name,data_value,total_population,latitude,longitude,data_year
func ParseCDCPlaces(r io.Reader, loadedAt time.Time) ([]models.RawCDCPlacesRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, err
	}

	var rows []models.RawCDCPlacesRow
	for i, rec := range records {
		get := fieldGetter(header, rec)

		year, err := strconv.Atoi(strings.TrimSpace(get("data_year")))
		if err != nil {
			return nil, errors.New(errors.ErrCodeStageMalformed,
				fmt.Sprintf("bad data_year on line %d", i+2)).WithContext("value", get("data_year"))
		}

		rows = append(rows, models.RawCDCPlacesRow{
			StateAbbr:       strings.TrimSpace(get("state_abbr")),
			CountyName:      strings.TrimSpace(get("county_name")),
			MeasureID:       strings.TrimSpace(get("measure_id")),
			MeasureName:     strings.TrimSpace(get("measure_name")),
			DataValue:       nullFloat(get("data_value")),
			TotalPopulation: nullInt(get("total_population")),
			Latitude:        nullFloat(get("latitude")),
			Longitude:       nullFloat(get("longitude")),
			DataYear:        year,
			LoadTimestamp:   loadedAt,
		})
	}
	return rows, nil
}

// ParseEnvironmental reads staged environmental facility rows. Expected header:
// state_abbr,county_name,facility_name,facility_address,facility_type,risk_level,air_quality_index,inspection_score,data_year
func ParseEnvironmental(r io.Reader, loadedAt time.Time) ([]models.RawEnvironmentalRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, err
	}

	var rows []models.RawEnvironmentalRow
	for i, rec := range records {
		get := fieldGetter(header, rec)

		year, err := strconv.Atoi(strings.TrimSpace(get("data_year")))
		if err != nil {
			return nil, errors.New(errors.ErrCodeStageMalformed,
				fmt.Sprintf("bad data_year on line %d", i+2)).WithContext("value", get("data_year"))
		}

		rows = append(rows, models.RawEnvironmentalRow{
			StateAbbr:       strings.TrimSpace(get("state_abbr")),
			CountyName:      strings.TrimSpace(get("county_name")),
			FacilityName:    strings.TrimSpace(get("facility_name")),
			FacilityAddress: strings.TrimSpace(get("facility_address")),
			FacilityType:    strings.TrimSpace(get("facility_type")),
			RiskLevel:       strings.ToUpper(strings.TrimSpace(get("risk_level"))),
			AirQualityIndex: nullFloat(get("air_quality_index")),
			InspectionScore: nullFloat(get("inspection_score")),
			DataYear:        year,
			LoadTimestamp:   loadedAt,
		})
	}
	return rows, nil
}

func readAll(r io.Reader) (records [][]string, header map[string]int, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeStageMalformed, "Failed to parse staged CSV")
	}
	if len(all) == 0 {
		return nil, nil, errors.New(errors.ErrCodeStageMalformed, "Staged CSV is empty")
	}

	header = make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return all[1:], header, nil
}

func fieldGetter(header map[string]int, rec []string) func(string) string {
	return func(name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}
}

func nullFloat(s string) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullInt(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt64{}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
