package services

import (
	"context"
	"testing"

	"streak-tracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParticipantService_EnsureIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewParticipantService(db, zap.NewNop())
	ctx := context.Background()

	p, err := svc.Ensure(ctx, "p1", "Ada", "ada@example.com", "superuser")
	require.NoError(t, err)
	assert.Equal(t, models.RoleParticipant, p.Role)
	assert.Zero(t, p.CurrentStreak)
	assert.Nil(t, p.FirstSubmissionDate)

	again, err := svc.Ensure(ctx, "p1", "Someone Else", "", models.RoleParticipant)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.FullName)

	_, err = svc.Ensure(ctx, "", "x", "", "")
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestParticipantService_GetActive(t *testing.T) {
	db := newTestDB(t)
	svc := NewParticipantService(db, zap.NewNop())
	ctx := context.Background()
	mustEnsure(t, db, "p1")

	_, err := svc.GetActive(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Participant{}).Where("id = ?", "p1").Update("is_deleted", true).Error)
	_, err = svc.GetActive(ctx, "p1")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	p, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.IsDeleted)

	_, err = svc.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestParticipantService_StatsAndAdminList(t *testing.T) {
	db := newTestDB(t)
	svc := NewParticipantService(db, zap.NewNop())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "gone"} {
		mustEnsure(t, db, id)
	}
	_, err := svc.Ensure(ctx, "root", "Root", "", models.RoleAdmin)
	require.NoError(t, err)
	seedSubmissions(t, db, "b", 1, seedStart)
	seedSubmissions(t, db, "c", 4, seedStart)
	require.NoError(t, db.Model(&models.Participant{}).Where("id = ?", "gone").Update("is_deleted", true).Error)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ParticipantStats{
		TotalParticipants:        3,
		ParticipantsWithZero:     1,
		ParticipantsWithOne:      1,
		ParticipantsWithTwoPlus:  1,
		ParticipantsWithProjects: 2,
	}, *stats)

	list, err := svc.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	counts := map[string]int64{}
	for _, row := range list {
		counts[row.ID] = row.ProjectCount
	}
	assert.Equal(t, map[string]int64{"a": 0, "b": 1, "c": 4}, counts)
}

func TestParticipantService_ActivityAndProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustEnsure(t, db, "p1")

	clock := newClock(2025, 6, 10)
	subs := NewSubmissionService(db, nil, zap.NewNop(), nil).WithClock(clock.Now)
	for _, gap := range []int{0, 0, 2} {
		clock.AdvanceDays(gap)
		_, err := subs.Submit(ctx, "p1", validInput("P"))
		require.NoError(t, err)
	}
	// far outside the window
	seedSubmissions(t, db, "p1", 1, clock.Now().AddDate(-2, 0, 0))

	svc := NewParticipantService(db, zap.NewNop()).WithClock(clock.Now)
	activity, err := svc.Activity(ctx, "p1", 7)
	require.NoError(t, err)
	require.Len(t, activity, 8)
	assert.Equal(t, models.NewDate(2025, 6, 5), activity[0].Date)
	assert.Equal(t, models.NewDate(2025, 6, 12), activity[7].Date)
	assert.Equal(t, 2, activity[5].Count)
	assert.Equal(t, 0, activity[6].Count)
	assert.Equal(t, 1, activity[7].Count)

	profile, err := svc.Profile(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, profile.TotalProjects)
	assert.Len(t, profile.Activity, ActivityWindowDays+1)
	assert.Equal(t, 1, profile.Participant.CurrentStreak)
	assert.EqualValues(t, 10, profile.Participant.Points)
}
