package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"healthpipe/internal/audit"
	"healthpipe/internal/pipeline"
	"healthpipe/internal/scheduler"
	"healthpipe/internal/server"
	"healthpipe/internal/sources"
	"healthpipe/internal/ui"
	"healthpipe/pkg/models"
)

var scheduleAddr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline scheduler daemon",
	Long: `Run the configured stages on their cron schedules, with dependency gating:
a stage only fires when every stage it declares in "after" finished its most
recent run in SUCCESS. Also serves the HTTP monitoring API when an address is
configured.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleAddr, "addr", "", "Monitoring API listen address (overrides config)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		return err
	}

	svc, err := connectWarehouse(cfg)
	if err != nil {
		ui.ShowError(err)
		return err
	}
	defer svc.Close()

	registry := sources.NewRegistry(cfg.Sources)
	auditLog := audit.NewLogger(svc)
	pipe := pipeline.New(svc, auditLog, registry)

	runners, err := stageRunners(pipe, registry, cfg.Scheduler.Stages)
	if err != nil {
		ui.ShowError(err)
		return err
	}

	sched, err := scheduler.New(cfg.Scheduler.Stages, runners)
	if err != nil {
		ui.ShowError(err)
		return err
	}

	// Prime dependency gating from the execution log, so stages whose
	// predecessors succeeded before a restart are not blocked again.
	if err := seedStageOutcomes(ctx, sched, auditLog, cfg.Scheduler.Stages); err != nil {
		console.Warning(fmt.Sprintf("Could not seed stage history: %v", err))
	}

	addr := scheduleAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ui.ShowHeader("Pipeline scheduler")
	for _, st := range cfg.Scheduler.Stages {
		if !st.Enabled {
			console.Warning(fmt.Sprintf("Stage %s is disabled", st.Name))
			continue
		}
		console.Info(fmt.Sprintf("Stage %s on schedule %q", st.Name, st.Schedule))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if addr != "" {
		console.Info(fmt.Sprintf("Monitoring API listening on %s", addr))
		srv := server.New(addr, svc, auditLog, sched)
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		ui.ShowError(err)
		return err
	}
	return nil
}

// seedStageOutcomes replays each stage's latest terminal run from the
// execution log into the scheduler. RUNNING entries are ignored: a run cut
// off mid-flight proves nothing about its outcome.
func seedStageOutcomes(ctx context.Context, sched *scheduler.Scheduler, auditLog *audit.Logger, stages []models.Stage) error {
	for _, st := range stages {
		proc, ok := stageProcedure(st.Name)
		if !ok {
			continue
		}
		entry, err := auditLog.LatestRun(ctx, proc)
		if err != nil {
			return err
		}
		if entry == nil || entry.Status == models.StatusRunning {
			continue
		}
		ranAt := entry.ExecutionStart
		if entry.ExecutionEnd.Valid {
			ranAt = entry.ExecutionEnd.Time
		}
		detail := ""
		if entry.ErrorMessage.Valid {
			detail = entry.ErrorMessage.String
		}
		if err := sched.Seed(st.Name, entry.Status, ranAt, detail); err != nil {
			return err
		}
	}
	return nil
}

// stageProcedure maps a stage name to the procedure it records in the
// execution log.
func stageProcedure(name string) (string, bool) {
	switch {
	case strings.HasPrefix(name, "ingest_"):
		return pipeline.ProcIngest, true
	case name == "curate":
		return pipeline.ProcCurate, true
	case name == "build_mart":
		return pipeline.ProcBuildMart, true
	case name == "monitor_failures":
		return pipeline.ProcMonitor, true
	}
	return "", false
}

// stageRunners maps configured stage names to pipeline procedures. Ingestion
// stages follow the ingest_<source> naming convention; the remaining stages
// bind by fixed name.
func stageRunners(pipe *pipeline.Pipeline, registry *sources.Registry, stages []models.Stage) (map[string]scheduler.StageFunc, error) {
	runners := make(map[string]scheduler.StageFunc, len(stages))

	for _, st := range stages {
		switch {
		case strings.HasPrefix(st.Name, "ingest_"):
			source := strings.ToUpper(strings.TrimPrefix(st.Name, "ingest_"))
			if _, err := registry.Lookup(source); err != nil {
				return nil, err
			}
			runners[st.Name] = func(ctx context.Context) (*models.Result, error) {
				return pipe.Ingest(ctx, source)
			}
		case st.Name == "curate":
			runners[st.Name] = func(ctx context.Context) (*models.Result, error) {
				return pipe.Curate(ctx, false)
			}
		case st.Name == "build_mart":
			runners[st.Name] = func(ctx context.Context) (*models.Result, error) {
				return pipe.BuildMart(ctx)
			}
		case st.Name == "monitor_failures":
			runners[st.Name] = func(ctx context.Context) (*models.Result, error) {
				return pipe.MonitorFailures(ctx)
			}
		default:
			return nil, fmt.Errorf("no pipeline procedure for stage %q", st.Name)
		}
	}

	return runners, nil
}
