package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streak-tracker/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler rebuilds a participant's ledger from submission history. It is
// for audits and repairs only; live submissions always trust the stored
// counters.
type Reconciler struct {
	DB     *gorm.DB
	locker Locker
	log    *zap.Logger
	now    func() time.Time
}

func NewReconciler(db *gorm.DB, locker Locker, logger *zap.Logger) *Reconciler {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Reconciler{DB: db, locker: locker, log: logger, now: time.Now}
}

// LedgerView is the JSON form of a Ledger.
type LedgerView struct {
	CurrentStreak            int          `json:"currentStreak"`
	LongestStreak            int          `json:"longestStreak"`
	Points                   int64        `json:"points"`
	FirstSubmissionDate      *models.Date `json:"firstSubmissionDate"`
	LastSubmissionDate       *models.Date `json:"lastSubmissionDate"`
	HasReachedThirtyProjects bool         `json:"hasReachedThirtyProjects"`
}

func viewOf(l Ledger) LedgerView {
	return LedgerView{
		CurrentStreak:            l.CurrentStreak,
		LongestStreak:            l.LongestStreak,
		Points:                   l.Points,
		FirstSubmissionDate:      l.FirstSubmission,
		LastSubmissionDate:       l.LastSubmission,
		HasReachedThirtyProjects: l.Frozen,
	}
}

// Audit compares stored counters with a replay of the history.
type Audit struct {
	ParticipantID string     `json:"participantId"`
	Submissions   int        `json:"submissions"`
	Stored        LedgerView `json:"stored"`
	Replayed      LedgerView `json:"replayed"`
	Drift         bool       `json:"drift"`
}

// Replay feeds submission timestamps, oldest first, through Accumulate.
func Replay(createdAt []time.Time) Ledger {
	var l Ledger
	for i, t := range createdAt {
		l, _ = Accumulate(l, models.DateOf(t), int64(i+1))
	}
	return l
}

func (r *Reconciler) Audit(ctx context.Context, id string) (*Audit, error) {
	return r.audit(r.DB.WithContext(ctx), id)
}

func (r *Reconciler) audit(db *gorm.DB, id string) (*Audit, error) {
	var p models.Participant
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}

	var history []time.Time
	if err := db.Model(&models.Submission{}).
		Where("owner_id = ?", id).
		Order("created_at ASC").
		Pluck("created_at", &history).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	stored := viewOf(LedgerOf(&p))
	replayed := viewOf(Replay(history))
	return &Audit{
		ParticipantID: id,
		Submissions:   len(history),
		Stored:        stored,
		Replayed:      replayed,
		Drift:         !sameLedger(stored, replayed),
	}, nil
}

// Repair overwrites the stored counters with the replayed ledger when they
// drifted. The participant lock is held so no submission interleaves.
func (r *Reconciler) Repair(ctx context.Context, id string) (*Audit, error) {
	unlock, err := r.locker.Lock(ctx, participantLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("acquire participant lock: %w", err)
	}
	defer unlock()

	var audit *Audit
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := r.audit(tx, id)
		if err != nil {
			return err
		}
		audit = a
		if !a.Drift {
			return nil
		}

		var p models.Participant
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		if p.IsDeleted {
			return ErrParticipantDeleted
		}
		rv := a.Replayed
		ledger := Ledger{
			CurrentStreak:   rv.CurrentStreak,
			LongestStreak:   rv.LongestStreak,
			Points:          max(rv.Points, p.Points),
			FirstSubmission: rv.FirstSubmissionDate,
			LastSubmission:  rv.LastSubmissionDate,
			Frozen:          rv.HasReachedThirtyProjects,
		}
		ledger.ApplyTo(&p)
		return saveLedger(tx, &p, r.now().UTC())
	})
	if errors.Is(err, errVersionConflict) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	if audit.Drift {
		r.log.Warn("participant ledger repaired from history",
			zap.String("participant_id", id),
			zap.Any("stored", audit.Stored),
			zap.Any("replayed", audit.Replayed))
	}
	return audit, nil
}

func sameLedger(a, b LedgerView) bool {
	return a.CurrentStreak == b.CurrentStreak &&
		a.LongestStreak == b.LongestStreak &&
		a.Points == b.Points &&
		a.HasReachedThirtyProjects == b.HasReachedThirtyProjects &&
		sameDate(a.FirstSubmissionDate, b.FirstSubmissionDate) &&
		sameDate(a.LastSubmissionDate, b.LastSubmissionDate)
}

func sameDate(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
