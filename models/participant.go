package models

import (
	"time"
)

const (
	RoleParticipant = "participant"
	RoleAdmin       = "admin"
)

// Participant holds the per-user streak/points accumulator. The ID is the
// opaque user id issued by the upstream auth service.
type Participant struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	FullName string `json:"full_name"`
	Email    string `gorm:"index" json:"email,omitempty"`
	Role     string `gorm:"type:varchar(16);default:'participant';index" json:"role"`

	// Streak bookkeeping
	CurrentStreak       int        `json:"current_streak" gorm:"default:0"`
	LongestStreak       int        `json:"longest_streak" gorm:"default:0"`
	LastSubmissionDate  *time.Time `json:"last_submission_date"`
	FirstSubmissionDate *time.Time `json:"first_submission_date"`

	// Milestone: once set, streak fields stop changing
	HasReachedThirtyProjects bool  `json:"has_reached_thirty_projects" gorm:"default:false"`
	Points                   int64 `json:"points" gorm:"default:0"`

	// Soft delete (cleanup policy only)
	IsDeleted bool       `json:"is_deleted" gorm:"default:false;index"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Optimistic concurrency guard for accumulator writes
	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
