package models

import "time"

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// CleanupRun records one execution of the inactive-participant cleanup.
type CleanupRun struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Trigger    string    `gorm:"type:varchar(16);index" json:"trigger"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TotalParticipants        int    `json:"total_participants"`
	ParticipantsWithProjects int    `json:"participants_with_projects"`
	ZeroProjects             int    `json:"participants_with_zero_projects"`
	OneProject               int    `json:"participants_with_one_project"`
	TwoPlusProjects          int    `json:"participants_with_two_plus_projects"`
	DeletedUsers             int    `json:"deleted_users"`
	SkipReason               string `gorm:"type:varchar(32)" json:"skip_reason,omitempty"`
	Message                  string `gorm:"type:text" json:"message"`
	Error                    string `gorm:"type:text" json:"error,omitempty"`
}
