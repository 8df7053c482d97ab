package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"taskcal/internal/civil"
	"taskcal/internal/config"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/planner"
)

// Jobs is what the scheduler runs. *app.Service implements it.
type Jobs interface {
	Materialize(ctx context.Context, forTomorrow bool) (planner.MaterializeResult, error)
	SyncToday(ctx context.Context) ([]model.Task, error)
}

// Scheduler runs materialization and calendar sync on cron specs in JST.
type Scheduler struct {
	cronEngine *cron.Cron
	jobs       Jobs
	specs      config.ScheduleConfig
	timeout    time.Duration
}

func New(jobs Jobs, specs config.ScheduleConfig) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(civil.JST)),
		jobs:       jobs,
		specs:      specs,
		timeout:    2 * time.Minute,
	}
}

// Start registers every job and starts the cron engine. A bad spec is
// reported before anything runs.
func (s *Scheduler) Start() error {
	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"materialize_today", s.specs.Materialize, func(ctx context.Context) error {
			_, err := s.jobs.Materialize(ctx, false)
			return err
		}},
		{"materialize_tomorrow", s.specs.MaterializeTomorrow, func(ctx context.Context) error {
			_, err := s.jobs.Materialize(ctx, true)
			return err
		}},
		{"calendar_refresh", s.specs.Refresh, func(ctx context.Context) error {
			_, err := s.jobs.SyncToday(ctx)
			return err
		}},
	}

	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		if _, err := s.cronEngine.AddFunc(e.spec, s.wrap(e.name, e.run)); err != nil {
			return fmt.Errorf("scheduler: add %s (%q): %w", e.name, e.spec, err)
		}
		appLog.Info("scheduler job registered", "job", e.name, "spec", e.spec)
	}

	s.cronEngine.Start()
	appLog.Info("scheduler started", "jobs", len(s.cronEngine.Entries()))
	return nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		started := time.Now()
		if err := run(ctx); err != nil {
			appLog.Error("scheduler job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduler job finished", "job", name, "elapsed", time.Since(started).String())
	}
}

// Stop stops the engine and waits for running jobs.
func (s *Scheduler) Stop() {
	appLog.Info("stopping scheduler")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}
