package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/xuebang/xuebang-api/model"
	"gorm.io/gorm"
)

var (
	// ErrTierNotFound is returned when a tier does not exist or is inactive
	ErrTierNotFound = errors.New("membership tier not found")

	// ErrTierSoldOut is returned when a limited tier has no remaining slots
	ErrTierSoldOut = errors.New("membership tier sold out")
)

// TierService manages the membership tier catalog and the global slot
// accounting of limited tiers.
type TierService struct {
	db *gorm.DB
}

// NewTierService creates a new tier service
func NewTierService(db *gorm.DB) *TierService {
	return &TierService{db: db}
}

// TierView is a tier decorated with availability info for catalog listings.
type TierView struct {
	model.MembershipTier
	Remaining   *int `json:"remaining,omitempty"`
	IsSoldOut   bool `json:"is_sold_out"`
	Purchasable bool `json:"purchasable"`
}

// ListTiers returns all active purchasable tiers in display order, with
// remaining slot counts on limited tiers.
func (s *TierService) ListTiers() ([]TierView, error) {
	var tiers []model.MembershipTier
	err := s.db.
		Where("is_active = ? AND code <> ?", true, model.FreeTierCode).
		Order("sort_order ASC, level ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}

	views := make([]TierView, 0, len(tiers))
	for _, t := range tiers {
		v := TierView{MembershipTier: t}
		if t.IsLimited {
			remaining := t.TotalQuota - t.SoldCount
			if remaining < 0 {
				remaining = 0
			}
			v.Remaining = &remaining
			v.IsSoldOut = t.SoldOut()
		}
		v.Purchasable = !v.IsSoldOut
		views = append(views, v)
	}
	return views, nil
}

// GetTier loads one active tier by id
func (s *TierService) GetTier(tierID uint) (*model.MembershipTier, error) {
	var tier model.MembershipTier
	err := s.db.Where("id = ? AND is_active = ?", tierID, true).First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to load tier %d: %w", tierID, err)
	}
	return &tier, nil
}

// GetTierByCode loads one tier by its stable code
func (s *TierService) GetTierByCode(code string) (*model.MembershipTier, error) {
	var tier model.MembershipTier
	err := s.db.Where("code = ?", code).First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to load tier %s: %w", code, err)
	}
	return &tier, nil
}

// ReserveSlot atomically claims one slot of a limited tier. The conditional
// update either claims a slot or affects zero rows; there is no window in
// which two buyers can take the same last slot. Unlimited tiers always
// succeed without touching the row.
func (s *TierService) ReserveSlot(tx *gorm.DB, tierID uint) error {
	var tier model.MembershipTier
	if err := tx.First(&tier, tierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTierNotFound
		}
		return fmt.Errorf("failed to load tier %d: %w", tierID, err)
	}

	if !tier.IsLimited {
		return nil
	}

	result := tx.Model(&model.MembershipTier{}).
		Where("id = ? AND is_limited = ? AND sold_count < total_quota", tierID, true).
		UpdateColumn("sold_count", gorm.Expr("sold_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to reserve slot for tier %d: %w", tierID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTierSoldOut
	}

	log.Printf("reserved slot on limited tier %d", tierID)
	return nil
}

// ReleaseSlot returns one slot to a limited tier, used when an order holding
// a reservation expires or is cancelled. The sold_count > 0 guard keeps a
// double release from driving the counter negative.
func (s *TierService) ReleaseSlot(tx *gorm.DB, tierID uint) error {
	result := tx.Model(&model.MembershipTier{}).
		Where("id = ? AND is_limited = ? AND sold_count > 0", tierID, true).
		UpdateColumn("sold_count", gorm.Expr("sold_count - 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to release slot for tier %d: %w", tierID, result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("released slot on limited tier %d", tierID)
	}
	return nil
}
