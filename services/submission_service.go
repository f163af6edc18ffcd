package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streak-tracker/models"
	"streak-tracker/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSubmitRetries = 3
	// DefaultSubmitTimeout bounds one Submit, lock wait included. Distributed
	// participant leases must outlive it.
	DefaultSubmitTimeout = 20 * time.Second
)

// SubmissionInput is the validated payload of a project submission.
type SubmissionInput struct {
	Name         string
	Description  string
	LiveLink     string
	GithubLink   string
	Technologies []string
}

// SubmitResult is what a successful Submit committed.
type SubmitResult struct {
	Submission  models.Submission
	Participant models.Participant
	Outcome     Outcome
}

type SubmissionService struct {
	DB      *gorm.DB
	locker  Locker
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
	retries int
	timeout time.Duration
}

func NewSubmissionService(db *gorm.DB, locker Locker, logger *zap.Logger, metrics *Metrics) *SubmissionService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &SubmissionService{
		DB:      db,
		locker:  locker,
		log:     logger,
		metrics: metrics,
		now:     time.Now,
		retries: defaultSubmitRetries,
		timeout: DefaultSubmitTimeout,
	}
}

// WithClock replaces the wall clock used to stamp submissions.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit stores a submission for ownerID and applies it to the owner's
// streak and points. The submission row and the participant update commit
// together or not at all. Submissions for the same owner are serialized.
func (s *SubmissionService) Submit(ctx context.Context, ownerID string, in SubmissionInput) (*SubmitResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidSubmission)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidSubmission)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, participantLockKey(ownerID))
	if err != nil {
		return nil, fmt.Errorf("acquire participant lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	for attempt := 0; ; attempt++ {
		res, err := s.submitOnce(ctx, ownerID, in, now)
		if errors.Is(err, errVersionConflict) {
			if attempt < s.retries {
				s.log.Warn("participant version conflict, retrying",
					zap.String("participant_id", ownerID), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, ErrConcurrentUpdate
		}
		if err != nil {
			if errors.Is(err, ErrParticipantNotFound) {
				s.log.Error("submission for unknown participant", zap.String("participant_id", ownerID))
			}
			return nil, err
		}

		s.metrics.observeSubmission(res.Outcome)
		fields := []zap.Field{
			zap.String("participant_id", ownerID),
			zap.String("submission_id", res.Submission.ID),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("current_streak", res.Participant.CurrentStreak),
			zap.Int64("points", res.Participant.Points),
		}
		if res.Outcome == OutcomeBackdated || res.Outcome == OutcomeRecovered {
			s.log.Warn("submission applied to inconsistent streak state", fields...)
		} else {
			s.log.Info("submission accepted", fields...)
		}
		return res, nil
	}
}

func (s *SubmissionService) submitOnce(ctx context.Context, ownerID string, in SubmissionInput, now time.Time) (*SubmitResult, error) {
	var res SubmitResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Participant
		if err := tx.Where("id = ?", ownerID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return fmt.Errorf("load participant: %w", err)
		}
		if p.IsDeleted {
			return ErrParticipantDeleted
		}

		today := models.DateOf(now)
		id := uuid.NewString()
		sub := models.Submission{
			ID:           id,
			OwnerID:      ownerID,
			Day:          today.String(),
			CreatedAt:    now,
			Name:         in.Name,
			Slug:         utils.ProjectSlug(in.Name, id),
			Description:  in.Description,
			LiveLink:     in.LiveLink,
			GithubLink:   in.GithubLink,
			Technologies: utils.NormalizeTechnologies(in.Technologies),
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}

		var total int64
		if err := tx.Model(&models.Submission{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
			return fmt.Errorf("count submissions: %w", err)
		}

		ledger, outcome := Accumulate(LedgerOf(&p), today, total)
		ledger.ApplyTo(&p)
		if err := saveLedger(tx, &p, now); err != nil {
			return err
		}

		res = SubmitResult{Submission: sub, Participant: p, Outcome: outcome}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// saveLedger writes the accumulator columns of p if nobody changed the row
// since it was read and it is still active, and bumps the version.
func saveLedger(tx *gorm.DB, p *models.Participant, now time.Time) error {
	result := tx.Model(&models.Participant{}).
		Where("id = ? AND version = ? AND is_deleted = ?", p.ID, p.Version, false).
		Updates(map[string]interface{}{
			"current_streak":              p.CurrentStreak,
			"longest_streak":              p.LongestStreak,
			"points":                      p.Points,
			"first_submission_date":       p.FirstSubmissionDate,
			"last_submission_date":        p.LastSubmissionDate,
			"has_reached_thirty_projects": p.HasReachedThirtyProjects,
			"version":                     p.Version + 1,
			"updated_at":                  now,
		})
	if result.Error != nil {
		return fmt.Errorf("update participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// LifetimeCount returns how many submissions ownerID has ever made.
func (s *SubmissionService) LifetimeCount(ctx context.Context, ownerID string) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.Submission{}).Where("owner_id = ?", ownerID).Count(&total).Error
	return total, err
}

// ListByOwner returns ownerID's submissions, newest first.
func (s *SubmissionService) ListByOwner(ctx context.Context, ownerID string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// ListAll returns the public gallery page, newest first, with owners loaded.
func (s *SubmissionService) ListAll(ctx context.Context, page, size int) ([]models.Submission, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Submission{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subs []models.Submission
	err := s.DB.WithContext(ctx).
		Preload("Owner").
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&subs).Error
	return subs, total, err
}

func participantLockKey(id string) string {
	return "participant:" + id
}
