package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streak-tracker/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityWindowDays is the length of the profile activity view.
const ActivityWindowDays = 365

type ParticipantService struct {
	DB  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewParticipantService(db *gorm.DB, logger *zap.Logger) *ParticipantService {
	return &ParticipantService{DB: db, log: logger, now: time.Now}
}

// WithClock replaces the wall clock used for "today".
func (s *ParticipantService) WithClock(now func() time.Time) *ParticipantService {
	s.now = now
	return s
}

// Ensure creates a zeroed participant for id if none exists (idempotent).
// Identity fields of an existing participant are left alone.
func (s *ParticipantService) Ensure(ctx context.Context, id, fullName, email, role string) (*models.Participant, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing participant id", ErrInvalidSubmission)
	}
	if role != models.RoleAdmin {
		role = models.RoleParticipant
	}
	p := models.Participant{
		ID:       id,
		FullName: fullName,
		Email:    email,
		Role:     role,
	}
	db := s.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the participant with id, including soft-deleted ones.
func (s *ParticipantService) Get(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetActive is Get that treats soft-deleted participants as missing.
func (s *ParticipantService) GetActive(ctx context.Context, id string) (*models.Participant, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// ListActive returns every participant (role participant) not soft-deleted.
func (s *ParticipantService) ListActive(ctx context.Context) ([]models.Participant, error) {
	return listActive(s.DB.WithContext(ctx))
}

func listActive(db *gorm.DB) ([]models.Participant, error) {
	var participants []models.Participant
	err := db.Where("role = ? AND is_deleted = ?", models.RoleParticipant, false).
		Order("created_at ASC").
		Find(&participants).Error
	return participants, err
}

// submissionCounts aggregates lifetime submission counts by owner.
func submissionCounts(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		OwnerID string
		Total   int64
	}
	if err := db.Model(&models.Submission{}).
		Select("owner_id, COUNT(*) AS total").
		Group("owner_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.OwnerID] = r.Total
	}
	return counts, nil
}

// ParticipantStats buckets active participants by lifetime submission count.
type ParticipantStats struct {
	TotalParticipants        int `json:"totalParticipants"`
	ParticipantsWithZero     int `json:"participantsWithZeroProjects"`
	ParticipantsWithOne      int `json:"participantsWithOneProject"`
	ParticipantsWithTwoPlus  int `json:"participantsWithTwoPlusProjects"`
	ParticipantsWithProjects int `json:"participantsWithProjects"`
}

func (s *ParticipantService) Stats(ctx context.Context) (*ParticipantStats, error) {
	db := s.DB.WithContext(ctx)
	participants, err := listActive(db)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	counts, err := submissionCounts(db)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	stats := &ParticipantStats{TotalParticipants: len(participants)}
	for _, p := range participants {
		switch n := counts[p.ID]; {
		case n == 0:
			stats.ParticipantsWithZero++
		case n == 1:
			stats.ParticipantsWithOne++
			stats.ParticipantsWithProjects++
		default:
			stats.ParticipantsWithTwoPlus++
			stats.ParticipantsWithProjects++
		}
	}
	return stats, nil
}

// ParticipantSummary is one row of the admin participant list. Streak and
// points come from the stored counters.
type ParticipantSummary struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	Email                    string    `json:"email"`
	ProjectCount             int64     `json:"projectCount"`
	StreakCount              int       `json:"streakCount"`
	LongestStreak            int       `json:"longestStreak"`
	HasReachedThirtyProjects bool      `json:"hasReachedThirtyProjects"`
	Points                   int64     `json:"points"`
	JoinedAt                 time.Time `json:"joinedAt"`
}

func (s *ParticipantService) AdminList(ctx context.Context) ([]ParticipantSummary, error) {
	db := s.DB.WithContext(ctx)
	participants, err := listActive(db)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	counts, err := submissionCounts(db)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	res := make([]ParticipantSummary, len(participants))
	for i, p := range participants {
		res[i] = ParticipantSummary{
			ID:                       p.ID,
			Name:                     p.FullName,
			Email:                    p.Email,
			ProjectCount:             counts[p.ID],
			StreakCount:              p.CurrentStreak,
			LongestStreak:            p.LongestStreak,
			HasReachedThirtyProjects: p.HasReachedThirtyProjects,
			Points:                   p.Points,
			JoinedAt:                 p.CreatedAt,
		}
	}
	return res, nil
}

// DayCount is the number of submissions on one UTC calendar day.
type DayCount struct {
	Date  models.Date `json:"date"`
	Count int         `json:"count"`
}

// Activity returns per-day submission counts for the days-long window ending
// today, oldest first, with zero-filled gaps.
func (s *ParticipantService) Activity(ctx context.Context, id string, days int) ([]DayCount, error) {
	if days < 1 {
		days = ActivityWindowDays
	}
	today := models.DateOf(s.now())
	from := today.AddDays(-days)

	var rows []struct {
		Day   string
		Total int
	}
	if err := s.DB.WithContext(ctx).Model(&models.Submission{}).
		Select("day, COUNT(*) AS total").
		Where("owner_id = ? AND day >= ? AND day <= ?", id, from.String(), today.String()).
		Group("day").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate activity: %w", err)
	}
	byDay := make(map[string]int, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r.Total
	}

	out := make([]DayCount, 0, days+1)
	for d := from; !d.After(today); d = d.AddDays(1) {
		out = append(out, DayCount{Date: d, Count: byDay[d.String()]})
	}
	return out, nil
}

// Profile is the participant's dashboard projection.
type Profile struct {
	Participant   *models.Participant `json:"user"`
	TotalProjects int64               `json:"totalProjects"`
	Activity      []DayCount          `json:"streakData"`
}

// Profile returns the dashboard of an active participant.
func (s *ParticipantService) Profile(ctx context.Context, id string) (*Profile, error) {
	p, err := s.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Submission{}).Where("owner_id = ?", id).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	activity, err := s.Activity(ctx, id, ActivityWindowDays)
	if err != nil {
		return nil, err
	}
	return &Profile{Participant: p, TotalProjects: total, Activity: activity}, nil
}
