package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types emitted by the matching pipeline.
const (
	NotificationTypeMatchFound = "match_found"
	NotificationTypeSystem     = "system"
)

// Notification is the persisted delivery contract; transport (email, SMS,
// push) is handled elsewhere. A nil RecipientID marks an admin broadcast.
type Notification struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	RecipientID *uint `gorm:"index" json:"recipient_id"`
	Recipient   *User `gorm:"foreignKey:RecipientID" json:"-"`

	Title   string         `gorm:"not null" json:"title"`
	Message string         `gorm:"type:text" json:"message"`
	Type    string         `gorm:"not null;index;type:varchar(30)" json:"type"`
	Data    datatypes.JSON `json:"data"`
	Read    bool           `gorm:"default:false;index" json:"read"`
	ReadAt  *time.Time     `json:"read_at"`
}
