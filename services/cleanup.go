package services

import (
	"context"
	"fmt"
	"time"

	"streak-tracker/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cleanupChunkSize = 500

// SkipReason tells which guard, if any, stopped a cleanup run from deleting.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipNoParticipants SkipReason = "no_participants"
	// SkipBootstrapping: nobody has two or more submissions yet.
	SkipBootstrapping SkipReason = "no_two_plus_participants"
	// SkipAllThirtyPlus: every participant with submissions has 30 or more.
	SkipAllThirtyPlus SkipReason = "all_thirty_plus"
	// SkipMilestoneReached: someone already carries the 30-project milestone.
	SkipMilestoneReached SkipReason = "milestone_reached"
)

// CleanupResult is the outcome of one cleanup run. Guard skips are results,
// not errors.
type CleanupResult struct {
	TotalParticipants        int        `json:"totalParticipants"`
	ParticipantsWithProjects int        `json:"participantsWithProjects"`
	ZeroProjects             int        `json:"participantsWithZeroProjects"`
	OneProject               int        `json:"participantsWithOneProject"`
	TwoPlusProjects          int        `json:"participantsWithTwoPlusProjects"`
	DeletedUsers             int        `json:"deletedUsers"`
	SkipReason               SkipReason `json:"skipReason,omitempty"`
	Message                  string     `json:"message"`
}

// RunArchiver stores a finished cleanup run outside the database.
type RunArchiver interface {
	ArchiveCleanupRun(ctx context.Context, run *models.CleanupRun) error
}

type CleanupService struct {
	DB       *gorm.DB
	log      *zap.Logger
	metrics  *Metrics
	archiver RunArchiver
	now      func() time.Time
}

func NewCleanupService(db *gorm.DB, logger *zap.Logger, metrics *Metrics, archiver RunArchiver) *CleanupService {
	return &CleanupService{
		DB:       db,
		log:      logger,
		metrics:  metrics,
		archiver: archiver,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock used for deleted_at and run timestamps.
func (s *CleanupService) WithClock(now func() time.Time) *CleanupService {
	s.now = now
	return s
}

// Run evaluates the cleanup policy once and records the run. trigger is
// models.TriggerSchedule or models.TriggerManual.
func (s *CleanupService) Run(ctx context.Context, trigger string) (*CleanupResult, error) {
	run := &models.CleanupRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now().UTC(),
	}

	res, err := s.evaluate(ctx)
	s.metrics.observeCleanup(trigger, res, err)

	run.FinishedAt = s.now().UTC()
	if res != nil {
		run.TotalParticipants = res.TotalParticipants
		run.ParticipantsWithProjects = res.ParticipantsWithProjects
		run.ZeroProjects = res.ZeroProjects
		run.OneProject = res.OneProject
		run.TwoPlusProjects = res.TwoPlusProjects
		run.DeletedUsers = res.DeletedUsers
		run.SkipReason = string(res.SkipReason)
		run.Message = res.Message
	}
	if err != nil {
		run.Error = err.Error()
	}
	s.record(ctx, run)

	if err != nil {
		s.log.Error("cleanup failed", zap.String("trigger", trigger), zap.Error(err))
		return nil, fmt.Errorf("cleanup inactive participants: %w", err)
	}
	s.log.Info("cleanup finished",
		zap.String("trigger", trigger),
		zap.Int("deleted", res.DeletedUsers),
		zap.String("skip_reason", string(res.SkipReason)),
		zap.String("message", res.Message))
	return res, nil
}

func (s *CleanupService) evaluate(ctx context.Context) (*CleanupResult, error) {
	db := s.DB.WithContext(ctx)

	participants, err := listActive(db)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) == 0 {
		return &CleanupResult{SkipReason: SkipNoParticipants, Message: "No participants found"}, nil
	}

	counts, err := submissionCounts(db)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	res := &CleanupResult{TotalParticipants: len(participants)}
	var zero []string
	allThirtyPlus := true
	milestone := false
	for _, p := range participants {
		n := counts[p.ID]
		switch {
		case n == 0:
			zero = append(zero, p.ID)
		case n == 1:
			res.OneProject++
		default:
			res.TwoPlusProjects++
		}
		if n > 0 {
			res.ParticipantsWithProjects++
			if n < MilestoneProjects {
				allThirtyPlus = false
			}
		}
		if p.HasReachedThirtyProjects {
			milestone = true
		}
	}
	res.ZeroProjects = len(zero)
	var totalProjects int64
	for _, n := range counts {
		totalProjects += n
	}

	if res.TwoPlusProjects == 0 {
		res.SkipReason = SkipBootstrapping
		res.Message = "No participants with 2+ projects found. Skipping cleanup to preserve all accounts."
		return res, nil
	}
	if allThirtyPlus {
		res.SkipReason = SkipAllThirtyPlus
		res.Message = "Cleanup skipped: All remaining participants have 30+ project submissions."
		return res, nil
	}
	if milestone {
		res.SkipReason = SkipMilestoneReached
		res.Message = "Cleanup skipped: Some participants have reached the 30-project milestone."
		return res, nil
	}

	deleted, err := s.softDelete(db, zero)
	res.DeletedUsers = deleted
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("Successfully deleted %d inactive participant accounts. %d participants have 2+ projects. Total projects: %d.",
		deleted, res.TwoPlusProjects, totalProjects)
	return res, nil
}

// softDelete deactivates ids in chunks. Each chunk only touches rows that
// are still active and still have no submissions, so re-running after an
// interruption or a late submission is safe.
func (s *CleanupService) softDelete(db *gorm.DB, ids []string) (int, error) {
	now := s.now().UTC()
	deleted := 0
	for start := 0; start < len(ids); start += cleanupChunkSize {
		if err := db.Statement.Context.Err(); err != nil {
			return deleted, err
		}
		end := min(start+cleanupChunkSize, len(ids))
		result := db.Model(&models.Participant{}).
			Where("id IN ? AND is_deleted = ? AND role = ?", ids[start:end], false, models.RoleParticipant).
			Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.owner_id = participants.id)").
			Updates(softDeleteColumns(now))
		if result.Error != nil {
			return deleted, fmt.Errorf("soft delete participants: %w", result.Error)
		}
		deleted += int(result.RowsAffected)
	}
	return deleted, nil
}

// softDeleteColumns also bumps version so an accumulator write that read the
// row before the delete is rejected.
func softDeleteColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now,
		"updated_at": now,
		"version":    gorm.Expr("version + 1"),
	}
}

func (s *CleanupService) record(ctx context.Context, run *models.CleanupRun) {
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		s.log.Warn("failed to record cleanup run", zap.String("run_id", run.ID), zap.Error(err))
	}
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveCleanupRun(ctx, run); err != nil {
		s.log.Warn("failed to archive cleanup run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// RecentRuns returns the latest cleanup runs, newest first.
func (s *CleanupService) RecentRuns(ctx context.Context, limit int) ([]models.CleanupRun, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var runs []models.CleanupRun
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
