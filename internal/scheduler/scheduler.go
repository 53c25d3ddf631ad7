// Package scheduler sequences the pipeline stages. Stages fire on cron
// schedules, but a stage with declared predecessors only runs once every
// predecessor's most recent run finished in SUCCESS: dependency gating, not
// fixed clock offsets, orders the pipeline. A failed predecessor blocks the
// downstream stage until a later run succeeds, so downstream stages never
// silently recompute from stale upstream data.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// StageFunc executes one pipeline stage.
type StageFunc func(ctx context.Context) (*models.Result, error)

// Outcome is the recorded result of a stage's most recent run.
type Outcome struct {
	Status     string         `json:"status"` // SUCCESS, FAILED, SKIPPED or "" when never run
	RanAt      time.Time      `json:"ran_at"`
	Detail     string         `json:"detail,omitempty"`
	LastResult *models.Result `json:"last_result,omitempty"`
}

type stage struct {
	name     string
	specText string
	schedule cron.Schedule
	after    []string
	enabled  bool
	run      StageFunc

	next    time.Time
	outcome Outcome
}

// Scheduler drives the stage graph.
type Scheduler struct {
	mu     sync.Mutex
	stages map[string]*stage
	order  []string

	// pollInterval bounds scheduling latency; stages fire on the first
	// poll at or after their cron time.
	pollInterval time.Duration
}

// New builds a scheduler from the configured stages and their runners.
func New(configured []models.Stage, runners map[string]StageFunc) (*Scheduler, error) {
	s := &Scheduler{
		stages:       make(map[string]*stage),
		pollInterval: 30 * time.Second,
	}

	for _, cfg := range configured {
		runner, ok := runners[cfg.Name]
		if !ok {
			return nil, errors.New(errors.ErrCodeStageNotDefined,
				fmt.Sprintf("No runner registered for stage %q", cfg.Name))
		}

		schedule, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadCronSpec,
				fmt.Sprintf("Invalid cron expression for stage %q", cfg.Name)).
				WithContext("schedule", cfg.Schedule)
		}

		s.stages[cfg.Name] = &stage{
			name:     cfg.Name,
			specText: cfg.Schedule,
			schedule: schedule,
			after:    cfg.After,
			enabled:  cfg.Enabled,
			run:      runner,
		}
		s.order = append(s.order, cfg.Name)
	}

	if err := s.validateGraph(); err != nil {
		return nil, err
	}

	return s, nil
}

// validateGraph checks that every declared predecessor exists and the
// dependency graph is acyclic.
func (s *Scheduler) validateGraph() error {
	for _, st := range s.stages {
		for _, dep := range st.after {
			if _, ok := s.stages[dep]; !ok {
				return errors.New(errors.ErrCodeStageNotDefined,
					fmt.Sprintf("Stage %q depends on undefined stage %q", st.name, dep))
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return errors.New(errors.ErrCodeCyclicStages,
				fmt.Sprintf("Stage dependency cycle involving %q", name))
		case black:
			return nil
		}
		color[name] = gray
		for _, dep := range s.stages[name].after {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for name := range s.stages {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Seed records a stage's most recent persisted outcome, so dependency gating
// survives a daemon restart: a stage whose predecessor already succeeded
// before the restart is not blocked waiting for an in-process run. Seeding
// never overwrites an outcome recorded by this process.
func (s *Scheduler) Seed(name, status string, ranAt time.Time, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[name]
	if !ok {
		return errors.New(errors.ErrCodeStageNotDefined, fmt.Sprintf("Unknown stage %q", name))
	}
	if st.outcome.Status != "" {
		return nil
	}
	st.outcome = Outcome{Status: status, RanAt: ranAt, Detail: detail}
	return nil
}

// Run drives the stage graph until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	now := time.Now()
	s.mu.Lock()
	for _, st := range s.stages {
		st.next = st.schedule.Next(now)
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.RunDue(ctx, now)
		}
	}
}

// RunDue runs every stage due at now, in declaration order. Stages run
// sequentially: the stages contend for the same tables and gain nothing
// from overlap.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) {
	for _, name := range s.order {
		s.mu.Lock()
		st := s.stages[name]
		due := st.enabled && !st.next.After(now)
		if due {
			st.next = st.schedule.Next(now)
		}
		s.mu.Unlock()

		if !due {
			continue
		}
		s.runStage(ctx, st, now)
	}
}

func (s *Scheduler) runStage(ctx context.Context, st *stage, now time.Time) {
	if blocked, dep := s.blockedBy(st); blocked {
		s.setOutcome(st, Outcome{
			Status: models.StatusSkipped,
			RanAt:  now,
			Detail: fmt.Sprintf("predecessor %q has no terminal SUCCESS", dep),
		}, nil)
		return
	}

	result, err := st.run(ctx)
	if err != nil {
		s.setOutcome(st, Outcome{
			Status: models.StatusFailed,
			RanAt:  now,
			Detail: err.Error(),
		}, result)
		return
	}
	s.setOutcome(st, Outcome{
		Status: models.StatusSuccess,
		RanAt:  now,
		Detail: result.Status,
	}, result)
}

// blockedBy reports whether a predecessor's most recent outcome is anything
// other than SUCCESS.
func (s *Scheduler) blockedBy(st *stage) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range st.after {
		if s.stages[dep].outcome.Status != models.StatusSuccess {
			return true, dep
		}
	}
	return false, ""
}

func (s *Scheduler) setOutcome(st *stage, o Outcome, result *models.Result) {
	o.LastResult = result
	s.mu.Lock()
	st.outcome = o
	s.mu.Unlock()
}

// StageStatus is a point-in-time view of one stage for status surfaces.
type StageStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	After    []string  `json:"after,omitempty"`
	Enabled  bool      `json:"enabled"`
	NextRun  time.Time `json:"next_run"`
	Last     Outcome   `json:"last"`
}

// Statuses returns the current view of every stage in declaration order.
func (s *Scheduler) Statuses() []StageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]StageStatus, 0, len(s.order))
	for _, name := range s.order {
		st := s.stages[name]
		statuses = append(statuses, StageStatus{
			Name:     st.name,
			Schedule: st.specText,
			After:    st.after,
			Enabled:  st.enabled,
			NextRun:  st.next,
			Last:     st.outcome,
		})
	}
	return statuses
}

// SetEnabled enables or disables a stage at runtime.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[name]
	if !ok {
		return errors.New(errors.ErrCodeStageNotDefined, fmt.Sprintf("Unknown stage %q", name))
	}
	st.enabled = enabled
	return nil
}
