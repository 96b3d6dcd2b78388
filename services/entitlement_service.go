package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xuebang/xuebang-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotEntitled is returned when the user's tier does not include
	// the requested feature at all.
	ErrNotEntitled = errors.New("feature not included in membership tier")

	// ErrQuotaExceeded is returned when the windowed usage limit for the
	// feature is exhausted.
	ErrQuotaExceeded = errors.New("feature usage limit reached")
)

// AccessDeniedError carries the user-facing message and remaining count
// for an entitlement failure.
type AccessDeniedError struct {
	Err       error
	Message   string
	Remaining int
}

func (e *AccessDeniedError) Error() string { return e.Message }

func (e *AccessDeniedError) Unwrap() error { return e.Err }

// EntitlementService answers "may this user run this feature right now"
// and records usage after successful invocations.
type EntitlementService struct {
	db          *gorm.DB
	tierService *TierService
}

// NewEntitlementService creates a new entitlement service
func NewEntitlementService(db *gorm.DB, tierService *TierService) *EntitlementService {
	return &EntitlementService{db: db, tierService: tierService}
}

// WindowStart returns the UTC start of the window containing now.
// Daily windows start at UTC midnight, weekly windows on the ISO Monday,
// monthly windows on the first of the calendar month.
func WindowStart(w model.Window, now time.Time) time.Time {
	now = now.UTC()
	switch w {
	case model.WindowDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case model.WindowWeekly:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case model.WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	// Unknown window: treat as daily, the most restrictive sensible choice
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetCurrentMembership returns the user's active membership, or nil with
// the free tier when none is active. The tier return is never nil.
func (s *EntitlementService) GetCurrentMembership(userID uint) (*model.UserMembership, *model.MembershipTier, error) {
	now := time.Now().UTC()

	var membership model.UserMembership
	err := s.db.Preload("Tier").
		Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, now).
		Order("end_date DESC").
		First(&membership).Error
	if err == nil {
		return &membership, &membership.Tier, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to load membership for user %d: %w", userID, err)
	}

	freeTier, err := s.tierService.GetTierByCode(model.FreeTierCode)
	if err != nil {
		return nil, nil, fmt.Errorf("free tier missing from catalog: %w", err)
	}
	return nil, freeTier, nil
}

// CountUsage counts successful invocations of feature by the user since
// the start of the given window.
func (s *EntitlementService) CountUsage(userID uint, feature model.FeatureCode, w model.Window, now time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.UsageLog{}).
		Where("user_id = ? AND feature_code = ? AND created_at >= ?", userID, feature, WindowStart(w, now)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return count, nil
}

// CheckFeatureAccess verifies the user's tier includes the feature and the
// windowed quota is not exhausted. On denial it returns an AccessDeniedError
// wrapping ErrNotEntitled or ErrQuotaExceeded.
func (s *EntitlementService) CheckFeatureAccess(userID uint, feature model.FeatureCode) (*model.MembershipTier, error) {
	_, tier, err := s.GetCurrentMembership(userID)
	if err != nil {
		return nil, err
	}

	if !tier.Permission.Allows(feature) {
		return nil, &AccessDeniedError{
			Err:     ErrNotEntitled,
			Message: "当前会员等级不支持此功能，请升级会员",
		}
	}

	limit, hasLimit := tier.Permission.LimitFor(feature)
	if !hasLimit || limit.Unlimited() {
		return tier, nil
	}

	used, err := s.CountUsage(userID, feature, limit.Window, time.Now())
	if err != nil {
		return nil, err
	}

	if used >= int64(limit.Limit) {
		return nil, &AccessDeniedError{
			Err:       ErrQuotaExceeded,
			Message:   fmt.Sprintf("%s使用次数已达上限(%d次)", limit.Window.Label(), limit.Limit),
			Remaining: 0,
		}
	}

	return tier, nil
}

// RecordUsage appends a usage log row. It is called only after the feature
// invocation succeeded, so failed LLM calls never consume quota.
func (s *EntitlementService) RecordUsage(userID uint, feature model.FeatureCode, details datatypes.JSON) error {
	entry := model.UsageLog{
		UserID:      userID,
		FeatureCode: feature,
		Details:     details,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// FeatureUsage summarizes one feature's quota state for the usage endpoint.
type FeatureUsage struct {
	Feature   model.FeatureCode `json:"feature"`
	Allowed   bool              `json:"allowed"`
	Limit     int               `json:"limit"` // -1 = unlimited
	Window    model.Window      `json:"window,omitempty"`
	Used      int64             `json:"used"`
	Remaining int               `json:"remaining"` // -1 = unlimited
}

// GetUsageSummary reports quota state for every feature under the user's
// current tier.
func (s *EntitlementService) GetUsageSummary(userID uint) ([]FeatureUsage, error) {
	_, tier, err := s.GetCurrentMembership(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := make([]FeatureUsage, 0, len(model.AllFeatures))
	for _, feature := range model.AllFeatures {
		entry := FeatureUsage{Feature: feature}

		if !tier.Permission.Allows(feature) {
			summary = append(summary, entry)
			continue
		}
		entry.Allowed = true

		limit, hasLimit := tier.Permission.LimitFor(feature)
		if !hasLimit || limit.Unlimited() {
			entry.Limit = model.UnlimitedUses
			entry.Remaining = model.UnlimitedUses
			summary = append(summary, entry)
			continue
		}

		entry.Limit = limit.Limit
		entry.Window = limit.Window

		used, err := s.CountUsage(userID, feature, limit.Window, now)
		if err != nil {
			log.Printf("usage summary: count failed for user %d feature %s: %v", userID, feature, err)
			continue
		}
		entry.Used = used
		remaining := limit.Limit - int(used)
		if remaining < 0 {
			remaining = 0
		}
		entry.Remaining = remaining
		summary = append(summary, entry)
	}

	return summary, nil
}
