package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/config"
	"taskcal/internal/model"
	"taskcal/internal/planner"
)

type recordingJobs struct {
	mu       sync.Mutex
	tomorrow []bool
	syncs    int
	err      error
}

func (r *recordingJobs) Materialize(_ context.Context, forTomorrow bool) (planner.MaterializeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tomorrow = append(r.tomorrow, forTomorrow)
	return planner.MaterializeResult{}, r.err
}

func (r *recordingJobs) SyncToday(context.Context) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs++
	return nil, r.err
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&recordingJobs{}, config.ScheduleConfig{Materialize: "not a spec"})
	assert.Error(t, s.Start())
}

func TestStartRegistersJobs(t *testing.T) {
	s := New(&recordingJobs{}, config.DefaultConfig().Schedule)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cronEngine.Entries(), 3)
}

func TestEmptySpecIsSkipped(t *testing.T) {
	s := New(&recordingJobs{}, config.ScheduleConfig{Refresh: "*/5 * * * *"})
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cronEngine.Entries(), 1)
}

func TestWrappedJobsCallThrough(t *testing.T) {
	jobs := &recordingJobs{}
	s := New(jobs, config.DefaultConfig().Schedule)

	s.wrap("today", func(ctx context.Context) error {
		_, err := jobs.Materialize(ctx, false)
		return err
	})()
	s.wrap("refresh", func(ctx context.Context) error {
		_, err := jobs.SyncToday(ctx)
		return err
	})()

	jobs.err = errors.New("boom")
	// Errors are logged, never panicking the cron goroutine.
	s.wrap("tomorrow", func(ctx context.Context) error {
		_, err := jobs.Materialize(ctx, true)
		return err
	})()

	assert.Equal(t, []bool{false, true}, jobs.tomorrow)
	assert.Equal(t, 1, jobs.syncs)
}
