package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xuebang/xuebang-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivationService turns completed orders into membership records.
// Activation is idempotent per order: replayed gateway callbacks find the
// MembershipRecordID guard set and do nothing.
type ActivationService struct {
	db *gorm.DB
}

// NewActivationService creates a new activation service
func NewActivationService(db *gorm.DB) *ActivationService {
	return &ActivationService{db: db}
}

// ActivateForOrder creates or extends the user's membership for the tier the
// order paid for. Callers must invoke it inside the transaction that marked
// the order completed, or in a fresh transaction when recovering.
//
// Rules:
//   - same tier active: the new period starts at the current EndDate
//     (extension, no paid time lost)
//   - different tier active: the current membership is deactivated and the
//     new one starts now (replacement)
//   - no active membership: the new one starts now
func (s *ActivationService) ActivateForOrder(tx *gorm.DB, order *model.Order) error {
	if order.MembershipRecordID != nil {
		log.Printf("order %s already activated membership %d, skipping", order.OrderNumber, *order.MembershipRecordID)
		return nil
	}
	if order.TierID == nil {
		return fmt.Errorf("order %s has no tier to activate", order.OrderNumber)
	}

	var tier model.MembershipTier
	if err := tx.First(&tier, *order.TierID).Error; err != nil {
		return fmt.Errorf("failed to load tier %d for order %s: %w", *order.TierID, order.OrderNumber, err)
	}
	if tier.DurationDays <= 0 {
		return fmt.Errorf("tier %s has no duration, cannot activate", tier.Code)
	}

	now := time.Now().UTC()

	// Lock the user's active membership row, if any, so concurrent
	// activations for the same user serialize.
	var current model.UserMembership
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND is_active = ? AND end_date > ?", order.UserID, true, now).
		Order("end_date DESC").
		First(&current).Error

	startDate := now
	switch {
	case err == nil && current.TierID == *order.TierID:
		// Extension: the new period stacks after the current one. The
		// current row is deactivated so at most one row stays active.
		startDate = current.EndDate
		if uerr := tx.Model(&model.UserMembership{}).
			Where("id = ?", current.ID).
			Update("is_active", false).Error; uerr != nil {
			return fmt.Errorf("failed to deactivate membership %d: %w", current.ID, uerr)
		}
	case err == nil:
		// Replacement: deactivate the old membership immediately
		if uerr := tx.Model(&model.UserMembership{}).
			Where("id = ?", current.ID).
			Update("is_active", false).Error; uerr != nil {
			return fmt.Errorf("failed to deactivate membership %d: %w", current.ID, uerr)
		}
		log.Printf("replaced membership %d (tier %d) for user %d", current.ID, current.TierID, order.UserID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No active membership, start fresh
	default:
		return fmt.Errorf("failed to load current membership for user %d: %w", order.UserID, err)
	}

	membership := model.UserMembership{
		UserID:    order.UserID,
		TierID:    *order.TierID,
		StartDate: startDate,
		EndDate:   startDate.AddDate(0, 0, tier.DurationDays),
		IsActive:  true,
	}
	if err := tx.Create(&membership).Error; err != nil {
		return fmt.Errorf("failed to create membership for order %s: %w", order.OrderNumber, err)
	}

	if err := tx.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("membership_record_id", membership.ID).Error; err != nil {
		return fmt.Errorf("failed to link order %s to membership %d: %w", order.OrderNumber, membership.ID, err)
	}
	order.MembershipRecordID = &membership.ID

	log.Printf("activated membership %d (tier %s) for user %d via order %s, valid until %s",
		membership.ID, tier.Code, order.UserID, order.OrderNumber, membership.EndDate.Format(time.RFC3339))
	return nil
}

// DeactivateForOrder reverses an activation after a refund. The membership
// the order created is deactivated; earlier memberships are not restored.
func (s *ActivationService) DeactivateForOrder(tx *gorm.DB, order *model.Order) error {
	if order.MembershipRecordID == nil {
		return nil
	}

	result := tx.Model(&model.UserMembership{}).
		Where("id = ? AND is_active = ?", *order.MembershipRecordID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate membership %d: %w", *order.MembershipRecordID, result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("deactivated membership %d after refund of order %s", *order.MembershipRecordID, order.OrderNumber)
	}
	return nil
}
