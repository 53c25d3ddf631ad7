// Package pipeline implements the three pipeline procedures: raw ingestion,
// curation, and mart aggregation. Every procedure writes exactly one RUNNING
// execution-log entry at entry and exactly one terminal update at exit,
// including error and panic paths.
package pipeline

import (
	"context"
	"fmt"

	"healthpipe/internal/audit"
	"healthpipe/internal/sources"
	"healthpipe/internal/warehouse"
)

// Procedure names recorded in the execution log, carried over from the
// original warehouse deployment.
const (
	ProcIngest    = "SP_INGEST_RAW_DATA"
	ProcCurate    = "SP_PROCESS_CURATED_DATA"
	ProcBuildMart = "SP_BUILD_DATAMART"
	ProcMonitor   = "SP_MONITOR_FAILURES"
)

// Pipeline wires the procedures to the warehouse, the audit trail, and the
// source registry.
type Pipeline struct {
	svc      *warehouse.Service
	audit    *audit.Logger
	registry *sources.Registry
}

// New creates a pipeline.
func New(svc *warehouse.Service, auditLog *audit.Logger, registry *sources.Registry) *Pipeline {
	return &Pipeline{svc: svc, audit: auditLog, registry: registry}
}

// failOnPanic converts a panic into a FAILED terminal log entry before
// re-panicking, so a crashing procedure never strands a RUNNING row.
func failOnPanic(ctx context.Context, run *audit.Run) {
	if r := recover(); r != nil {
		_ = run.Fail(ctx, 0, fmt.Errorf("panic: %v", r))
		panic(r)
	}
}
