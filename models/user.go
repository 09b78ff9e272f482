package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
	Username      string         `gorm:"unique;not null" json:"username"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Email         string         `gorm:"unique;not null" json:"email"`
	Phone         *string        `gorm:"unique" json:"phone"`
	Password      *string        `gorm:"not null" json:"-"` // Don't expose password in JSON
	Avatar        string         `json:"avatar"`
	Role          string         `gorm:"not null;default:'user';type:varchar(20)" json:"role"` // "user" or "admin"
	Reports       []Report       `json:"reports" gorm:"foreignKey:OwnerID"`
	RefreshTokens []RefreshToken `json:"refresh_tokens" gorm:"foreignKey:UserID"`
	AccountStatus string         `json:"account_status"`
	IsVerified    bool           `json:"is_verified"`
	EmailVerified bool           `json:"email_verified"`
	PhoneVerified bool           `json:"phone_verified"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
