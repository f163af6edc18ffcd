package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"streak-tracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T) (*CleanupScheduler, *CleanupService) {
	t.Helper()
	db := newTestDB(t)
	cleanup := NewCleanupService(db, zap.NewNop(), nil, nil)
	s := NewCleanupScheduler(cleanup, zap.NewNop(), SchedulerOptions{})
	t.Cleanup(func() { _, _ = s.Stop() })
	return s, cleanup
}

func TestCleanupScheduler_StartStop(t *testing.T) {
	s, _ := newTestScheduler(t)
	assert.False(t, s.Status().IsRunning)

	started, err := s.Start("")
	require.NoError(t, err)
	assert.True(t, started)

	st := s.Status()
	assert.True(t, st.IsRunning)
	assert.Equal(t, DefaultCleanupSchedule, st.Schedule)
	assert.Eventually(t, func() bool { return s.Status().NextRun != nil }, time.Second, 10*time.Millisecond)

	// a second start keeps the existing timer
	started, err = s.Start("*/5 * * * *")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, DefaultCleanupSchedule, s.Status().Schedule)

	stopped, err := s.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, SchedulerStatus{}, s.Status())

	stopped, err = s.Stop()
	require.NoError(t, err)
	assert.False(t, stopped)

	// restart with a custom expression
	started, err = s.Start("0 3 * * *")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "0 3 * * *", s.Status().Schedule)
}

func TestCleanupScheduler_InvalidExpression(t *testing.T) {
	s, _ := newTestScheduler(t)
	started, err := s.Start("every day at noon")
	assert.Error(t, err)
	assert.False(t, started)
	assert.False(t, s.Status().IsRunning)
}

func TestCleanupScheduler_RunNow(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	mustEnsure(t, cleanup.DB, "a")

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipBootstrapping, res.SkipReason)

	runs, err := cleanup.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.TriggerManual, runs[0].Trigger)
}

func TestCleanupScheduler_RunsDoNotOverlap(t *testing.T) {
	s, cleanup := newTestScheduler(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RunNow(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	runs, err := cleanup.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	for i := 1; i < len(runs); i++ {
		// newest first; each run finished before the next started
		assert.False(t, runs[i].FinishedAt.After(runs[i-1].StartedAt))
	}
}
