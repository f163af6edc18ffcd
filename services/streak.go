package services

import (
	"streak-tracker/models"
)

const (
	// MilestoneProjects is the lifetime submission count that freezes streaks.
	MilestoneProjects = 30
	// PointsPerStreakDay is awarded for each day a streak grows.
	PointsPerStreakDay = 10
)

// Outcome describes what a single accepted submission did to the ledger.
type Outcome string

const (
	OutcomeFirst       Outcome = "first"
	OutcomeSameDay     Outcome = "same_day"
	OutcomeConsecutive Outcome = "consecutive"
	OutcomeReset       Outcome = "reset"
	OutcomeFrozen      Outcome = "frozen"
	OutcomeBackdated   Outcome = "backdated"
	// OutcomeRecovered: first submission date set but last date missing.
	OutcomeRecovered Outcome = "recovered"
)

// Ledger is the accumulator part of a Participant, with dates as calendar days.
type Ledger struct {
	CurrentStreak   int
	LongestStreak   int
	Points          int64
	FirstSubmission *models.Date
	LastSubmission  *models.Date
	Frozen          bool
}

// LedgerOf extracts the accumulator fields of p.
func LedgerOf(p *models.Participant) Ledger {
	return Ledger{
		CurrentStreak:   p.CurrentStreak,
		LongestStreak:   p.LongestStreak,
		Points:          p.Points,
		FirstSubmission: models.DatePtr(p.FirstSubmissionDate),
		LastSubmission:  models.DatePtr(p.LastSubmissionDate),
		Frozen:          p.HasReachedThirtyProjects,
	}
}

// ApplyTo copies the ledger back onto p.
func (l Ledger) ApplyTo(p *models.Participant) {
	p.CurrentStreak = l.CurrentStreak
	p.LongestStreak = l.LongestStreak
	p.Points = l.Points
	p.FirstSubmissionDate = l.FirstSubmission.TimePtr()
	p.LastSubmissionDate = l.LastSubmission.TimePtr()
	p.HasReachedThirtyProjects = l.Frozen
}

// Accumulate applies one accepted submission made on today. lifetimeCount is
// the owner's submission count including this one. The freeze flag is raised
// after the streak update, so it only affects later submissions.
func Accumulate(l Ledger, today models.Date, lifetimeCount int64) (Ledger, Outcome) {
	next := l
	var outcome Outcome

	switch {
	case l.Frozen:
		outcome = OutcomeFrozen
	case l.FirstSubmission == nil:
		first := today
		next.FirstSubmission = &first
		next.CurrentStreak = 1
		next.LongestStreak = max(next.LongestStreak, 1)
		next.Points = max(next.Points, PointsPerStreakDay)
		outcome = OutcomeFirst
	case l.LastSubmission == nil:
		next.CurrentStreak = 1
		next.LongestStreak = max(next.LongestStreak, 1)
		next.Points = max(next.Points, PointsPerStreakDay)
		outcome = OutcomeRecovered
	default:
		switch diff := today.DaysSince(*l.LastSubmission); {
		case diff < 0:
			outcome = OutcomeBackdated
		case diff == 0:
			outcome = OutcomeSameDay
		case diff == 1:
			next.CurrentStreak++
			next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
			next.Points += PointsPerStreakDay
			outcome = OutcomeConsecutive
		default:
			next.CurrentStreak = 1
			outcome = OutcomeReset
		}
	}

	if next.LastSubmission == nil || today.After(*next.LastSubmission) {
		last := today
		next.LastSubmission = &last
	}

	if !next.Frozen && lifetimeCount >= MilestoneProjects {
		next.Frozen = true
	}
	return next, outcome
}
