package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"streak-tracker/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))
	return db
}

// fakeClock is a settable wall clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time    { return c.t }
func (c *fakeClock) Set(t time.Time)   { c.t = t }
func (c *fakeClock) AdvanceDays(n int) { c.t = c.t.AddDate(0, 0, n) }

func newClock(y int, m time.Month, d int) *fakeClock {
	return &fakeClock{t: time.Date(y, m, d, 12, 0, 0, 0, time.UTC)}
}

func mustEnsure(t *testing.T, db *gorm.DB, id string) *models.Participant {
	t.Helper()
	p, err := NewParticipantService(db, zap.NewNop()).Ensure(context.Background(), id, "Name "+id, id+"@example.com", models.RoleParticipant)
	require.NoError(t, err)
	return p
}

// seedSubmissions inserts n raw submissions for owner without touching the ledger.
func seedSubmissions(t *testing.T, db *gorm.DB, owner string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts := at.AddDate(0, 0, i)
		sub := models.Submission{
			ID:        uuid.NewString(),
			OwnerID:   owner,
			Day:       models.DateOf(ts).String(),
			CreatedAt: ts,
			Name:      "seed",
		}
		require.NoError(t, db.Create(&sub).Error)
	}
}

func validInput(name string) SubmissionInput {
	return SubmissionInput{
		Name:         name,
		Description:  "description",
		LiveLink:     "https://example.com",
		GithubLink:   "https://github.com/example/repo",
		Technologies: []string{"Go", "go", " React "},
	}
}
