package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one daily project entry. Rows are append-only.
type Submission struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID string `gorm:"index;not null;type:varchar(64)" json:"owner_id"`

	// UTC calendar day of CreatedAt, YYYY-MM-DD
	Day       string    `gorm:"index;not null;type:varchar(10)" json:"day"`
	CreatedAt time.Time `json:"submitted_at"`

	Name         string                      `gorm:"not null" json:"name"`
	Slug         string                      `gorm:"index" json:"slug"`
	Description  string                      `gorm:"type:text" json:"description"`
	LiveLink     string                      `json:"live_link"`
	GithubLink   string                      `json:"github_link"`
	Technologies datatypes.JSONSlice[string] `json:"technologies"`

	Owner *Participant `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
