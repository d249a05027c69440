package models

import (
	"time"

	"gorm.io/gorm"
)

// UserAuth represents a user in the system
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type UserAuth struct {
	ID                string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email             string     `gorm:"unique;not null" json:"email"`
	Password          string     `gorm:"not null" json:"-"`
	Name              string     `json:"name,omitempty"`
	Role              string     `gorm:"default:'owner'" json:"role"`
	IsActive          bool       `gorm:"default:true" json:"isActive"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	PreferredLanguage string     `gorm:"default:'en'" json:"preferredLanguage"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}

// IsAdmin reports whether the user carries the admin role.
func (u *UserAuth) IsAdmin() bool {
	return u.Role == "admin"
}
