// services/scheduler.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"streak-tracker/models"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// DefaultCleanupSchedule runs the cleanup every day at 23:59.
const DefaultCleanupSchedule = "59 23 * * *"

const cleanupJobName = "participant-cleanup"

// SchedulerOptions configures a CleanupScheduler.
type SchedulerOptions struct {
	// DefaultExpression is used when Start gets an empty expression.
	DefaultExpression string
	// Location the cron expression is evaluated in; UTC when nil.
	Location *time.Location
	// Locker, when set, makes only one replica run each scheduled cleanup.
	Locker gocron.Locker
}

// SchedulerStatus is the scheduler control surface's view of itself.
type SchedulerStatus struct {
	IsRunning bool       `json:"isRunning"`
	Schedule  string     `json:"schedule,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
}

// CleanupScheduler owns the recurring cleanup timer. At most one timer is
// active; scheduled and manual runs never overlap.
type CleanupScheduler struct {
	cleanup *CleanupService
	log     *zap.Logger
	opts    SchedulerOptions

	mu         sync.Mutex
	sched      gocron.Scheduler
	job        gocron.Job
	expression string
	cancel     context.CancelFunc

	runMu sync.Mutex
}

func NewCleanupScheduler(cleanup *CleanupService, logger *zap.Logger, opts SchedulerOptions) *CleanupScheduler {
	if opts.DefaultExpression == "" {
		opts.DefaultExpression = DefaultCleanupSchedule
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &CleanupScheduler{cleanup: cleanup, log: logger, opts: opts}
}

// Start begins running the cleanup on expression (a 5-field cron expression).
// It returns false without error when a timer is already active.
func (s *CleanupScheduler) Start(expression string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		s.log.Warn("cleanup scheduler is already running", zap.String("schedule", s.expression))
		return false, nil
	}
	if expression == "" {
		expression = s.opts.DefaultExpression
	}

	schedOpts := []gocron.SchedulerOption{
		gocron.WithLocation(s.opts.Location),
		gocron.WithLogger(gocronLogger{s.log.Sugar()}),
	}
	if s.opts.Locker != nil {
		schedOpts = append(schedOpts, gocron.WithDistributedLocker(s.opts.Locker))
	}
	sched, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	job, err := sched.NewJob(
		gocron.CronJob(expression, false),
		gocron.NewTask(func() {
			if _, err := s.run(ctx, models.TriggerSchedule); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("scheduled cleanup failed", zap.Error(err))
			}
		}),
		gocron.WithName(cleanupJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return false, err
	}
	sched.Start()

	s.sched = sched
	s.job = job
	s.expression = expression
	s.cancel = cancel
	s.log.Info("cleanup scheduler started", zap.String("schedule", expression),
		zap.String("location", s.opts.Location.String()))
	return true, nil
}

// Stop cancels the recurring timer. It returns false when none was running.
func (s *CleanupScheduler) Stop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched == nil {
		return false, nil
	}
	s.cancel()
	err := s.sched.Shutdown()
	s.sched = nil
	s.job = nil
	s.expression = ""
	s.cancel = nil
	s.log.Info("cleanup scheduler stopped")
	return true, err
}

func (s *CleanupScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched == nil {
		return SchedulerStatus{}
	}
	st := SchedulerStatus{IsRunning: true, Schedule: s.expression}
	if next, err := s.job.NextRun(); err == nil && !next.IsZero() {
		st.NextRun = &next
	}
	return st
}

// RunNow runs the cleanup immediately, out of band of the timer.
func (s *CleanupScheduler) RunNow(ctx context.Context) (*CleanupResult, error) {
	return s.run(ctx, models.TriggerManual)
}

func (s *CleanupScheduler) run(ctx context.Context, trigger string) (*CleanupResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.log.Info("running cleanup of inactive participants", zap.String("trigger", trigger))
	return s.cleanup.Run(ctx, trigger)
}

// gocronLogger adapts zap to gocron's key/value logger.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
