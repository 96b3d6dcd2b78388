package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, admin
	Active       bool           `gorm:"default:true" json:"active"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Memberships   []UserMembership `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Orders        []Order          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	UsageLogs     []UsageLog       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Conversations []Conversation   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Student represents a roster entry a teacher grades against.
// Roster CRUD lives in the admin console; the core only needs lookups.
type Student struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	StudentNo string         `gorm:"type:varchar(50);uniqueIndex" json:"student_no"`
	ClassName string         `gorm:"type:varchar(100)" json:"class_name"`

	Assignments []Assignment `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}
