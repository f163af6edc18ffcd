package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"streak-tracker/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingArchiver struct {
	runs []*models.CleanupRun
	err  error
}

func (a *recordingArchiver) ArchiveCleanupRun(_ context.Context, run *models.CleanupRun) error {
	a.runs = append(a.runs, run)
	return a.err
}

func activeIDs(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var ids []string
	require.NoError(t, db.Model(&models.Participant{}).
		Where("is_deleted = ?", false).Order("id").Pluck("id", &ids).Error)
	return ids
}

var seedStart = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func TestCleanup_DeletesZeroSubmissionParticipants(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		mustEnsure(t, db, id)
	}
	seedSubmissions(t, db, "b", 1, seedStart)
	seedSubmissions(t, db, "c", 3, seedStart)

	clock := newClock(2025, 2, 1)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	archiver := &recordingArchiver{}
	svc := NewCleanupService(db, zap.NewNop(), metrics, archiver).WithClock(clock.Now)

	res, err := svc.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalParticipants)
	assert.Equal(t, 1, res.ZeroProjects)
	assert.Equal(t, 1, res.OneProject)
	assert.Equal(t, 1, res.TwoPlusProjects)
	assert.Equal(t, 2, res.ParticipantsWithProjects)
	assert.Equal(t, 1, res.DeletedUsers)
	assert.Equal(t, SkipNone, res.SkipReason)
	assert.Equal(t, "Successfully deleted 1 inactive participant accounts. 1 participants have 2+ projects. Total projects: 4.", res.Message)

	assert.Equal(t, []string{"b", "c"}, activeIDs(t, db))
	var a models.Participant
	require.NoError(t, db.Where("id = ?", "a").First(&a).Error)
	assert.True(t, a.IsDeleted)
	require.NotNil(t, a.DeletedAt)
	assert.True(t, a.DeletedAt.Equal(clock.Now()))

	require.Len(t, archiver.runs, 1)
	assert.Equal(t, models.TriggerManual, archiver.runs[0].Trigger)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.softDeleted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.cleanupRuns.WithLabelValues(models.TriggerManual, "deleted")), 0)

	// a second run finds nothing left to delete
	res, err = svc.Run(context.Background(), models.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DeletedUsers)
	assert.Equal(t, 2, res.TotalParticipants)

	runs, err := svc.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestCleanup_Guards(t *testing.T) {
	cases := []struct {
		name   string
		seed   func(t *testing.T, db *gorm.DB)
		reason SkipReason
	}{
		{
			name:   "no participants",
			seed:   func(*testing.T, *gorm.DB) {},
			reason: SkipNoParticipants,
		},
		{
			name: "nobody has two submissions",
			seed: func(t *testing.T, db *gorm.DB) {
				mustEnsure(t, db, "a")
				mustEnsure(t, db, "b")
				seedSubmissions(t, db, "b", 1, seedStart)
			},
			reason: SkipBootstrapping,
		},
		{
			name: "everyone with submissions has thirty",
			seed: func(t *testing.T, db *gorm.DB) {
				mustEnsure(t, db, "a")
				mustEnsure(t, db, "b")
				seedSubmissions(t, db, "b", MilestoneProjects, seedStart)
			},
			reason: SkipAllThirtyPlus,
		},
		{
			name: "someone carries the milestone",
			seed: func(t *testing.T, db *gorm.DB) {
				mustEnsure(t, db, "a")
				mustEnsure(t, db, "b")
				mustEnsure(t, db, "c")
				seedSubmissions(t, db, "b", 2, seedStart)
				seedSubmissions(t, db, "c", 1, seedStart)
				require.NoError(t, db.Model(&models.Participant{}).Where("id = ?", "c").
					Update("has_reached_thirty_projects", true).Error)
			},
			reason: SkipMilestoneReached,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t)
			tc.seed(t, db)
			before := activeIDs(t, db)

			res, err := NewCleanupService(db, zap.NewNop(), nil, nil).Run(context.Background(), models.TriggerSchedule)
			require.NoError(t, err)
			assert.Equal(t, tc.reason, res.SkipReason)
			assert.Zero(t, res.DeletedUsers)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, before, activeIDs(t, db))
		})
	}
}

func TestCleanup_SkipsAdminsAndLateSubmitters(t *testing.T) {
	db := newTestDB(t)
	mustEnsure(t, db, "idle")
	mustEnsure(t, db, "busy")
	_, err := NewParticipantService(db, zap.NewNop()).Ensure(context.Background(), "root", "Root", "", models.RoleAdmin)
	require.NoError(t, err)
	seedSubmissions(t, db, "busy", 2, seedStart)

	svc := NewCleanupService(db, zap.NewNop(), nil, nil)
	// "idle" submits between evaluation and the delete
	seedSubmissions(t, db, "idle", 1, seedStart)
	n, err := svc.softDelete(db.WithContext(context.Background()), []string{"idle", "root"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"busy", "idle", "root"}, activeIDs(t, db))
}

func TestCleanup_ArchiveFailureDoesNotFailRun(t *testing.T) {
	db := newTestDB(t)
	archiver := &recordingArchiver{err: errors.New("bucket unavailable")}
	res, err := NewCleanupService(db, zap.NewNop(), nil, archiver).Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, SkipNoParticipants, res.SkipReason)
	assert.Len(t, archiver.runs, 1)
}

func TestCleanup_ChunksLargeCohorts(t *testing.T) {
	db := newTestDB(t)
	ids := make([]string, 0, cleanupChunkSize+20)
	for i := 0; i < cap(ids); i++ {
		p := models.Participant{ID: fmt.Sprintf("idle-%04d", i), Role: models.RoleParticipant}
		require.NoError(t, db.Create(&p).Error)
		ids = append(ids, p.ID)
	}
	svc := NewCleanupService(db, zap.NewNop(), nil, nil)
	n, err := svc.softDelete(db, ids)
	require.NoError(t, err)
	assert.Equal(t, len(ids), n)
}
