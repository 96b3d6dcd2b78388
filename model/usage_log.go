package model

import (
	"time"

	"gorm.io/datatypes"
)

// UsageLog is an append-only record of one successful feature invocation.
// Quota checks count rows over (user_id, feature_code, created_at); the
// composite index below serves the window queries.
type UsageLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index:idx_usage_window,priority:1" json:"user_id"`
	FeatureCode FeatureCode    `gorm:"type:varchar(50);not null;index:idx_usage_window,priority:2" json:"feature_code"`
	Details     datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_usage_window,priority:3" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for UsageLog
func (UsageLog) TableName() string {
	return "usage_logs"
}
