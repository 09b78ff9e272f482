package models

import (
	"time"

	"gorm.io/gorm"
)

// Match statuses. REJECTED and CLOSED are terminal and only ever set by an
// administrator; the resolver never clears them.
const (
	MatchStatusPending  = "PENDING"
	MatchStatusMatched  = "MATCHED"
	MatchStatusRejected = "REJECTED"
	MatchStatusClosed   = "CLOSED"
)

// Match links a parent (missing-child) report to a finder (found-child)
// report. Rows are stored with the parent report first regardless of which
// side triggered the search, so one unordered pair maps to one row.
type Match struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	MissingReportID uint   `gorm:"not null;index:idx_match_pair" json:"missing_report_id"`
	MissingReport   Report `gorm:"foreignKey:MissingReportID;constraint:OnDelete:CASCADE" json:"missing_report"`
	FoundReportID   uint   `gorm:"not null;index:idx_match_pair" json:"found_report_id"`
	FoundReport     Report `gorm:"foreignKey:FoundReportID;constraint:OnDelete:CASCADE" json:"found_report"`

	Confidence       float64 `gorm:"not null" json:"confidence"` // 0-100
	Status           string  `gorm:"not null;default:'PENDING';index;type:varchar(20)" json:"status"`
	NotificationSent bool    `gorm:"default:false" json:"notification_sent"`

	VerifiedByID *uint      `json:"verified_by_id"`
	VerifiedBy   *User      `gorm:"foreignKey:VerifiedByID" json:"verified_by"`
	VerifiedAt   *time.Time `json:"verified_at"`
	Notes        string     `gorm:"type:text" json:"notes"`
}

// Terminal reports whether the match is in an admin-owned final state.
func (m *Match) Terminal() bool {
	return m.Status == MatchStatusRejected || m.Status == MatchStatusClosed
}
