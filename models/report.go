package models

import (
	"time"

	"gorm.io/gorm"
)

// ReportRole distinguishes the two report variants: a parent files a report
// for a missing child, a finder files a report for a child they found.
type ReportRole string

const (
	RoleParent ReportRole = "PARENT"
	RoleFinder ReportRole = "FINDER"
)

// Opposite returns the role a report of this role is matched against.
func (r ReportRole) Opposite() ReportRole {
	if r == RoleParent {
		return RoleFinder
	}
	return RoleParent
}

func (r ReportRole) Valid() bool {
	return r == RoleParent || r == RoleFinder
}

// Report lifecycle statuses.
const (
	ReportStatusActive    = "ACTIVE"
	ReportStatusResolved  = "RESOLVED"
	ReportStatusClosed    = "CLOSED"
	ReportStatusCancelled = "CANCELLED"
)

type Report struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Role   ReportRole `gorm:"not null;index;type:varchar(10)" json:"role"`
	Status string     `gorm:"not null;default:'ACTIVE';index;type:varchar(20)" json:"status"` // ACTIVE, RESOLVED, CLOSED, CANCELLED

	// Owner is immutable after creation.
	OwnerID uint `gorm:"not null;index" json:"owner_id"`
	Owner   User `gorm:"foreignKey:OwnerID" json:"owner"`

	ChildName      string     `json:"child_name"` // known for parent reports, usually empty for finder reports
	ApproximateAge int        `json:"approximate_age"`
	Gender         string     `gorm:"type:varchar(20)" json:"gender"`
	Description    string     `gorm:"type:text" json:"description"`
	Location       string     `json:"location"` // last-seen location (parent) or found location (finder)
	OccurredAt     *time.Time `json:"occurred_at"`
	ContactPhone   string     `json:"contact_phone"`

	Images []ReportImage `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"images"`
}

// IsActive reports whether the report participates in match finding.
func (r *Report) IsActive() bool {
	return r.Status == ReportStatusActive
}
