package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job statuses.
const (
	JobStatusWaiting   = "waiting"
	JobStatusDelayed   = "delayed"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a row in the durable work queue. The database is the only
// synchronization point between workers; claiming a job is a conditional
// status update.
type Job struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobID    string         `gorm:"uniqueIndex;not null;size:36" json:"job_id"`
	Type     string         `gorm:"not null;index;type:varchar(50)" json:"type"`
	Payload  datatypes.JSON `json:"payload"`
	Status   string         `gorm:"not null;default:'waiting';index;type:varchar(20)" json:"status"`
	Priority int            `gorm:"default:0" json:"priority"`

	Attempts    int        `gorm:"default:0" json:"attempts"`
	MaxAttempts int        `gorm:"default:3" json:"max_attempts"`
	RunAt       time.Time  `gorm:"index" json:"run_at"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	LastError   string     `gorm:"type:text" json:"last_error"`
}
