package server

import (
	"encoding/json"
	"net/http"
	"time"

	"healthpipe/pkg/models"
)

// DTOs flatten the sql.Null* columns into pointers so JSON consumers see
// null instead of Go's wrapper structs.

type runDTO struct {
	ExecutionID   string     `json:"execution_id"`
	Procedure     string     `json:"procedure"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	RowsProcessed *int64     `json:"rows_processed,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
}

func toRunDTO(e models.ExecutionLogEntry) runDTO {
	dto := runDTO{
		ExecutionID: e.ExecutionID,
		Procedure:   e.ProcedureName,
		Status:      e.Status,
		StartedAt:   e.ExecutionStart,
	}
	if e.ExecutionEnd.Valid {
		dto.FinishedAt = &e.ExecutionEnd.Time
	}
	if e.RowsProcessed.Valid {
		dto.RowsProcessed = &e.RowsProcessed.Int64
	}
	if e.ErrorMessage.Valid {
		dto.ErrorMessage = &e.ErrorMessage.String
	}
	return dto
}

type qualityDTO struct {
	Table     string    `json:"table"`
	Check     string    `json:"check"`
	Result    string    `json:"result"`
	Value     *float64  `json:"value,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

func toQualityDTO(e models.QualityLogEntry) qualityDTO {
	dto := qualityDTO{
		Table:     e.TableName,
		Check:     e.CheckName,
		Result:    e.CheckResult,
		CheckedAt: e.CheckTimestamp,
	}
	if e.CheckValue.Valid {
		dto.Value = &e.CheckValue.Float64
	}
	if e.ThresholdValue.Valid {
		dto.Threshold = &e.ThresholdValue.Float64
	}
	return dto
}

type dashboardDTO struct {
	County                string    `json:"county"`
	State                 string    `json:"state"`
	Year                  int       `json:"year"`
	Population            *int64    `json:"population,omitempty"`
	DiabetesRate          *float64  `json:"diabetes_prevalence_rate,omitempty"`
	ObesityRate           *float64  `json:"obesity_rate,omitempty"`
	CancerRate            *float64  `json:"cancer_incidence_rate,omitempty"`
	AccessBarrierRate     *float64  `json:"access_barrier_rate,omitempty"`
	AvgAirQualityIndex    *float64  `json:"avg_air_quality_index,omitempty"`
	HighRiskFacilityCount int64     `json:"high_risk_facility_count"`
	LastUpdated           time.Time `json:"last_updated"`
}

func toDashboardDTO(row models.DashboardRow) dashboardDTO {
	dto := dashboardDTO{
		County:                row.CountyName,
		State:                 row.StateAbbr,
		Year:                  row.DataYear,
		HighRiskFacilityCount: row.HighRiskFacilityCount,
		LastUpdated:           row.LastUpdated,
	}
	if row.TotalPopulation.Valid {
		dto.Population = &row.TotalPopulation.Int64
	}
	if row.DiabetesPrevalenceRate.Valid {
		dto.DiabetesRate = &row.DiabetesPrevalenceRate.Float64
	}
	if row.ObesityRate.Valid {
		dto.ObesityRate = &row.ObesityRate.Float64
	}
	if row.CancerIncidenceRate.Valid {
		dto.CancerRate = &row.CancerIncidenceRate.Float64
	}
	if row.AccessBarrierRate.Valid {
		dto.AccessBarrierRate = &row.AccessBarrierRate.Float64
	}
	if row.AvgAirQualityIndex.Valid {
		dto.AvgAirQualityIndex = &row.AvgAirQualityIndex.Float64
	}
	return dto
}

type indicatorDTO struct {
	LocationKey string   `json:"location_key"`
	State       string   `json:"state"`
	County      string   `json:"county"`
	Category    string   `json:"measure_category"`
	Value       *float64 `json:"measure_value,omitempty"`
	Population  *int64   `json:"population,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Year        int      `json:"year"`
	QualityFlag string   `json:"quality_flag"`
}

func toIndicatorDTO(row models.CuratedHealthIndicator) indicatorDTO {
	dto := indicatorDTO{
		LocationKey: row.LocationKey,
		State:       row.StateAbbr,
		County:      row.CountyName,
		Category:    row.MeasureCategory,
		Year:        row.DataYear,
		QualityFlag: row.DataQualityFlag,
	}
	if row.MeasureValue.Valid {
		dto.Value = &row.MeasureValue.Float64
	}
	if row.TotalPopulation.Valid {
		dto.Population = &row.TotalPopulation.Int64
	}
	if row.Latitude.Valid {
		dto.Latitude = &row.Latitude.Float64
	}
	if row.Longitude.Valid {
		dto.Longitude = &row.Longitude.Float64
	}
	return dto
}

type facilityDTO struct {
	LocationKey     string   `json:"location_key"`
	State           string   `json:"state"`
	County          string   `json:"county"`
	FacilityName    string   `json:"facility_name"`
	FacilityAddress string   `json:"facility_address"`
	RiskLevel       string   `json:"risk_level"`
	AirQualityIndex *float64 `json:"air_quality_index,omitempty"`
	InspectionScore *float64 `json:"inspection_score,omitempty"`
	Year            int      `json:"year"`
	QualityFlag     string   `json:"quality_flag"`
}

func toFacilityDTO(row models.CuratedEnvironmentalRecord) facilityDTO {
	dto := facilityDTO{
		LocationKey:     row.LocationKey,
		State:           row.StateAbbr,
		County:          row.CountyName,
		FacilityName:    row.FacilityName,
		FacilityAddress: row.FacilityAddress,
		RiskLevel:       row.RiskLevel,
		Year:            row.DataYear,
		QualityFlag:     row.DataQualityFlag,
	}
	if row.AirQualityIndex.Valid {
		dto.AirQualityIndex = &row.AirQualityIndex.Float64
	}
	if row.InspectionScore.Valid {
		dto.InspectionScore = &row.InspectionScore.Float64
	}
	return dto
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
