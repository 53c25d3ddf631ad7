// Package server exposes the pipeline's read-only monitoring surface over
// HTTP. It never mutates warehouse state; operators trigger runs through the
// CLI or the scheduler daemon.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"healthpipe/internal/audit"
	"healthpipe/internal/catalog"
	"healthpipe/internal/masking"
	"healthpipe/internal/scheduler"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

// RoleHeader names the caller's warehouse role for masking decisions.
// Absent or unknown values fall back to public visibility.
const RoleHeader = "X-Pipeline-Role"

// Server serves the monitoring API.
type Server struct {
	svc   *warehouse.Service
	audit *audit.Logger
	sched *scheduler.Scheduler // nil outside the scheduler daemon
	addr  string
}

// New creates the monitoring server. sched may be nil; /api/stages then
// reports 404.
func New(addr string, svc *warehouse.Service, logger *audit.Logger, sched *scheduler.Scheduler) *Server {
	return &Server{
		svc:   svc,
		audit: logger,
		sched: sched,
		addr:  addr,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/quality", s.handleQuality)
		r.Get("/stages", s.handleStages)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/indicators", s.handleIndicators)
		r.Get("/facilities", s.handleFacilities)
	})
	return r
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.svc.TestConnection(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status, "backend": s.svc.Dialect().Name()})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.RecentExecutions(r.Context(), limitParam(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read execution log", err)
		return
	}

	dtos := make([]runDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toRunDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.RecentQuality(r.Context(), limitParam(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read quality log", err)
		return
	}

	dtos := make([]qualityDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toQualityDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusNotFound, "Scheduler is not running", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Statuses())
}

// handleDashboard returns the mart dashboard with population masking applied
// for the caller's role, matching what the warehouse-side policies enforce.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	role := masking.FromRoleName(r.Header.Get(RoleHeader))

	table := s.svc.Dialect().TableRef(catalog.SchemaMart, catalog.TableDashboard)
	query := fmt.Sprintf(
		"SELECT county_name, state_abbr, data_year, total_population, diabetes_prevalence_rate, "+
			"obesity_rate, cancer_incidence_rate, access_barrier_rate, avg_air_quality_index, "+
			"high_risk_facility_count, last_updated FROM %s ORDER BY state_abbr, county_name, data_year",
		table)

	var rows []models.DashboardRow
	if err := s.svc.DB().SelectContext(r.Context(), &rows, query); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read dashboard", err)
		return
	}

	dtos := make([]dashboardDTO, 0, len(rows))
	for _, row := range rows {
		row.TotalPopulation = masking.NullPopulation(row.TotalPopulation, role)
		dtos = append(dtos, toDashboardDTO(row))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleIndicators returns curated health indicators with the coordinate
// masking the warehouse-side policies bind to the latitude and longitude
// columns.
func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	role := masking.FromRoleName(r.Header.Get(RoleHeader))

	table := s.svc.Dialect().TableRef(catalog.SchemaCurated, catalog.TableCuratedHealth)
	query := fmt.Sprintf(
		"SELECT location_key, state_abbr, county_name, measure_category, measure_value, "+
			"total_population, latitude, longitude, data_year, data_quality_flag "+
			"FROM %s ORDER BY state_abbr, county_name, measure_category, data_year LIMIT %d",
		table, limitParam(r, 100))

	var rows []models.CuratedHealthIndicator
	if err := s.svc.DB().SelectContext(r.Context(), &rows, query); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read curated health indicators", err)
		return
	}

	dtos := make([]indicatorDTO, 0, len(rows))
	for _, row := range rows {
		row.Latitude = masking.NullCoordinate(row.Latitude, role)
		row.Longitude = masking.NullCoordinate(row.Longitude, role)
		dtos = append(dtos, toIndicatorDTO(row))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleFacilities returns curated environmental records with the address
// masking the warehouse-side policies bind to facility_address.
func (s *Server) handleFacilities(w http.ResponseWriter, r *http.Request) {
	role := masking.FromRoleName(r.Header.Get(RoleHeader))

	table := s.svc.Dialect().TableRef(catalog.SchemaCurated, catalog.TableCuratedEnv)
	query := fmt.Sprintf(
		"SELECT location_key, state_abbr, county_name, facility_name, facility_address, "+
			"risk_level, air_quality_index, inspection_score, data_year, data_quality_flag "+
			"FROM %s ORDER BY state_abbr, county_name, facility_name, data_year LIMIT %d",
		table, limitParam(r, 100))

	var rows []models.CuratedEnvironmentalRecord
	if err := s.svc.DB().SelectContext(r.Context(), &rows, query); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read curated environmental data", err)
		return
	}

	dtos := make([]facilityDTO, 0, len(rows))
	for _, row := range rows {
		row.FacilityAddress = masking.Address(row.FacilityAddress, role)
		dtos = append(dtos, toFacilityDTO(row))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}
