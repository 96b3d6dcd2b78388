package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Window names a UTC-aligned rolling quota window.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Label returns the user-facing name of the window.
func (w Window) Label() string {
	switch w {
	case WindowDaily:
		return "今日"
	case WindowWeekly:
		return "本周"
	case WindowMonthly:
		return "本月"
	}
	return string(w)
}

// UnlimitedUses marks a feature limit with no cap.
const UnlimitedUses = -1

// WindowedLimit is an integer cap over a named rolling window.
// A Limit of UnlimitedUses (-1) denotes no cap.
type WindowedLimit struct {
	Limit  int    `json:"limit"`
	Window Window `json:"window"`
}

// Unlimited reports whether the limit imposes no cap.
func (l WindowedLimit) Unlimited() bool {
	return l.Limit == UnlimitedUses
}

// Permission is a tier's entitlement envelope: the set of allowed feature
// codes plus per-feature windowed limits. A feature absent from Features is
// denied entirely; a feature present with no entry in Limits is unlimited.
// Stored as JSONB on membership_tiers.
type Permission struct {
	Features []FeatureCode                 `json:"features"`
	Limits   map[FeatureCode]WindowedLimit `json:"limits,omitempty"`
}

// Allows reports whether the feature code is in the allowed set.
func (p Permission) Allows(code FeatureCode) bool {
	for _, f := range p.Features {
		if f == code {
			return true
		}
	}
	return false
}

// LimitFor returns the windowed limit for a feature. The second return is
// false when the feature carries no limit entry (treated as unlimited).
func (p Permission) LimitFor(code FeatureCode) (WindowedLimit, bool) {
	l, ok := p.Limits[code]
	return l, ok
}

// Scan implements the sql.Scanner interface for reading from database
func (p *Permission) Scan(value interface{}) error {
	if value == nil {
		*p = Permission{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal Permission value")
	}

	if len(bytes) == 0 {
		*p = Permission{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Value implements the driver.Valuer interface for writing to database
func (p Permission) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// FreeTierCode is the implicit tier applied to users without an active
// membership. It is seeded like any other tier but is never purchasable.
const FreeTierCode = "free"

// MembershipTier is a purchasable membership plan. Definitions are immutable
// once purchased; limited tiers carry global slot accounting.
type MembershipTier struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Code          string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name          string         `gorm:"not null" json:"name"`
	Level         int            `gorm:"default:0" json:"level"`
	Price         float64        `gorm:"not null" json:"price"`
	OriginalPrice float64        `json:"original_price"`
	DurationDays  int            `gorm:"default:0" json:"duration_days"` // 0 = no time bound (free)
	Permission    Permission     `gorm:"type:jsonb" json:"permission"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`

	// Limited-slot fields. MinOrder/MaxOrder are informational only; the
	// catalog enforces TotalQuota alone.
	IsLimited     bool `gorm:"default:false" json:"is_limited"`
	TotalQuota    int  `gorm:"default:0" json:"total_quota"`
	SoldCount     int  `gorm:"default:0" json:"sold_count"`
	MinOrder      int  `gorm:"default:0" json:"min_order"`
	MaxOrder      int  `gorm:"default:0" json:"max_order"`
	IsEarlyBird   bool `gorm:"default:false" json:"is_early_bird"`
	EarlyBirdTier int  `gorm:"default:0" json:"early_bird_tier"`
}

// TableName specifies the table name for MembershipTier
func (MembershipTier) TableName() string {
	return "membership_tiers"
}

// SoldOut reports whether a limited tier has no remaining slots.
func (t *MembershipTier) SoldOut() bool {
	return t.IsLimited && t.SoldCount >= t.TotalQuota
}

// UserMembership binds a user to a tier for [StartDate, EndDate).
// At most one row per user is active with EndDate in the future; the
// activation service enforces this under a row lock.
type UserMembership struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index:idx_membership_active,priority:1" json:"user_id"`
	TierID    uint           `gorm:"not null" json:"tier_id"`
	StartDate time.Time      `gorm:"not null" json:"start_date"`
	EndDate   time.Time      `gorm:"not null;index:idx_membership_active,priority:3" json:"end_date"`
	IsActive  bool           `gorm:"default:true;index:idx_membership_active,priority:2" json:"is_active"`

	// Relationships
	User User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tier MembershipTier `gorm:"foreignKey:TierID" json:"tier,omitempty"`
}

// TableName specifies the table name for UserMembership
func (UserMembership) TableName() string {
	return "user_memberships"
}

// ActiveAt reports whether the membership covers the given instant.
func (m *UserMembership) ActiveAt(t time.Time) bool {
	return m.IsActive && m.EndDate.After(t)
}
