package sources

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

func TestParseCDCPlaces(t *testing.T) {
	input := strings.Join([]string{
		"state_abbr,county_name,measure_id,measure_name,data_value,total_population,latitude,longitude,data_year",
		"MA,Middlesex,ACCESS2,Lack of insurance,15.2,1632002,42.4672,-71.2874,2023",
		"MA,Worcester,CANCER,Cancer among adults,456.2,,,,2023",
	}, "\n")

	loadedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows, err := ParseCDCPlaces(strings.NewReader(input), loadedAt)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "MA", first.StateAbbr)
	assert.Equal(t, "Middlesex", first.CountyName)
	assert.Equal(t, "ACCESS2", first.MeasureID)
	assert.True(t, first.DataValue.Valid)
	assert.Equal(t, 15.2, first.DataValue.Float64)
	assert.True(t, first.TotalPopulation.Valid)
	assert.Equal(t, int64(1632002), first.TotalPopulation.Int64)
	assert.Equal(t, 2023, first.DataYear)
	assert.Equal(t, loadedAt, first.LoadTimestamp)

	second := rows[1]
	assert.False(t, second.TotalPopulation.Valid)
	assert.False(t, second.Latitude.Valid)
	assert.True(t, second.DataValue.Valid)
}

func TestParseCDCPlacesBadYear(t *testing.T) {
	input := strings.Join([]string{
		"state_abbr,county_name,measure_id,measure_name,data_value,total_population,latitude,longitude,data_year",
		"MA,Middlesex,ACCESS2,Lack of insurance,15.2,1632002,42.4672,-71.2874,not-a-year",
	}, "\n")

	_, err := ParseCDCPlaces(strings.NewReader(input), time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStageMalformed, errors.GetErrorCode(err))
}

func TestParseEnvironmental(t *testing.T) {
	input := strings.Join([]string{
		"state_abbr,county_name,facility_name,facility_address,facility_type,risk_level,air_quality_index,inspection_score,data_year",
		`MA,Essex,"North Shore Plant","1 Harbor Way, Salem MA",WASTEWATER,high,55.3,,2023`,
	}, "\n")

	rows, err := ParseEnvironmental(strings.NewReader(input), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "North Shore Plant", row.FacilityName)
	assert.Equal(t, "1 Harbor Way, Salem MA", row.FacilityAddress)
	assert.Equal(t, "HIGH", row.RiskLevel, "risk level should be normalized to upper case")
	assert.True(t, row.AirQualityIndex.Valid)
	assert.False(t, row.InspectionScore.Valid)
}

func TestParseEmptyStage(t *testing.T) {
	_, err := ParseCDCPlaces(strings.NewReader(""), time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStageMalformed, errors.GetErrorCode(err))
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry([]models.Source{
		{Name: CDCPlaces, TargetTable: "RAW_CDC_PLACES_DATA"},
		{Name: Environmental, TargetTable: "RAW_ENVIRONMENTAL_HEALTH_DATA"},
	})

	source, err := registry.Lookup(CDCPlaces)
	require.NoError(t, err)
	assert.Equal(t, "RAW_CDC_PLACES_DATA", source.TargetTable)

	_, err = registry.Lookup("WEATHER")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownSource, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), `Invalid source_type "WEATHER"`)
	assert.True(t, errors.IsRecoverable(err))

	assert.Equal(t, []string{CDCPlaces, Environmental}, registry.Names())
}

func TestOpenStageFallsBackToSample(t *testing.T) {
	// No stage path configured: the embedded sample is served.
	rc, err := OpenStage(models.Source{Name: CDCPlaces})
	require.NoError(t, err)
	defer rc.Close()

	rows, err := ParseCDCPlaces(rc, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestOpenStagePrefersDiskFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cdc_places.csv"
	content := "state_abbr,county_name,measure_id,measure_name,data_value,total_population,latitude,longitude,data_year\n" +
		"MA,Suffolk,OBESITY,Obesity among adults,24.9,766381,42.3601,-71.0589,2023\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rc, err := OpenStage(models.Source{Name: CDCPlaces, StagePath: path})
	require.NoError(t, err)
	defer rc.Close()

	rows, err := ParseCDCPlaces(rc, time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Suffolk", rows[0].CountyName)
}

func TestOpenStageUnknownSource(t *testing.T) {
	_, err := OpenStage(models.Source{Name: "WEATHER"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStageNotFound, errors.GetErrorCode(err))
}
