package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"time"

	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/payment"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when an order does not exist or belongs
	// to another user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotCancellable is returned when a cancel request hits an
	// order that already left the pending state.
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")

	// ErrOrderNotRefundable is returned when a refund request hits an
	// order that is not completed.
	ErrOrderNotRefundable = errors.New("order is not refundable")

	// ErrAmountMismatch is returned when a callback reports a paid amount
	// that differs from the order amount.
	ErrAmountMismatch = errors.New("callback amount does not match order")
)

// amountTolerance absorbs float formatting differences between the order
// row and the gateway's decimal string.
const amountTolerance = 0.01

// OrderService drives the purchase state machine: order creation with slot
// reservation, gateway callbacks, expiry sweeps, cancellation and refunds.
type OrderService struct {
	db          *gorm.DB
	gateway     payment.Gateway
	tierService *TierService
	activation  *ActivationService
}

// NewOrderService creates a new order service. gateway may be nil when the
// platform runs without payment credentials; purchase endpoints then fail
// with ErrGatewayUnconfigured.
func NewOrderService(db *gorm.DB, gateway payment.Gateway, tierService *TierService, activation *ActivationService) *OrderService {
	return &OrderService{
		db:          db,
		gateway:     gateway,
		tierService: tierService,
		activation:  activation,
	}
}

// GenerateOrderNumber builds a unique order number: a UTC timestamp prefix
// for operator readability plus a random hex suffix for uniqueness.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to the nanosecond clock; collisions are caught by the
		// unique index on order_number.
		return fmt.Sprintf("%s%012d", now.UTC().Format("20060102150405"), now.Nanosecond())
	}
	return now.UTC().Format("20060102150405") + hex.EncodeToString(suffix)
}

// CreateOrder opens a pending order for the tier, reserving a slot on
// limited tiers, and returns the order together with the gateway payment URL.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, tierID uint, method model.PaymentMethod) (*model.Order, error) {
	if s.gateway == nil {
		return nil, payment.ErrGatewayUnconfigured
	}

	tier, err := s.tierService.GetTier(tierID)
	if err != nil {
		return nil, err
	}
	if tier.Code == model.FreeTierCode || tier.Price <= 0 {
		return nil, fmt.Errorf("%w: tier %s is not purchasable", ErrTierNotFound, tier.Code)
	}
	if tier.SoldOut() {
		return nil, ErrTierSoldOut
	}

	now := time.Now().UTC()
	order := model.Order{
		OrderNumber:    GenerateOrderNumber(now),
		UserID:         userID,
		TierID:         &tier.ID,
		Amount:         tier.Price,
		OriginalAmount: tier.OriginalPrice,
		DiscountAmount: math.Max(0, tier.OriginalPrice-tier.Price),
		PaymentMethod:  method,
		Status:         model.OrderStatusPending,
		ExpiresAt:      now.Add(model.OrderTTL),
	}

	// Slot reservation and order creation commit together: an order row
	// always accounts for exactly one reserved slot on limited tiers.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tierService.ReserveSlot(tx, tier.ID); err != nil {
			return err
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	payURL, err := s.gateway.CreatePayment(ctx, payment.PaymentRequest{
		OrderNumber: order.OrderNumber,
		Subject:     tier.Name,
		Amount:      order.Amount,
		Method:      method,
	})
	if err != nil {
		// Compensate: the buyer never saw a payment page, so fail the
		// order and hand the slot back.
		s.failOrderAndRelease(&order)
		return nil, fmt.Errorf("failed to create gateway payment: %w", err)
	}

	if err := s.db.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Update("payment_url", payURL).Error; err != nil {
		log.Printf("failed to store payment url for order %s: %v", order.OrderNumber, err)
	}
	order.PaymentURL = payURL

	log.Printf("created order %s for user %d, tier %s, amount %.2f, expires %s",
		order.OrderNumber, userID, tier.Code, order.Amount, order.ExpiresAt.Format(time.RFC3339))
	return &order, nil
}

// failOrderAndRelease marks a just-created pending order failed and returns
// its slot. Used to compensate a gateway failure during creation.
func (s *OrderService) failOrderAndRelease(order *model.Order) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusFailed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || order.TierID == nil {
			return nil
		}
		return s.tierService.ReleaseSlot(tx, *order.TierID)
	})
	if err != nil {
		log.Printf("failed to compensate order %s: %v", order.OrderNumber, err)
	}
}

// HandleNotification processes a verified asynchronous gateway callback.
// A nil return means the handler should acknowledge with "success"; any
// error means "fail" so the gateway retries.
func (s *OrderService) HandleNotification(ctx context.Context, values url.Values) error {
	if s.gateway == nil {
		return payment.ErrGatewayUnconfigured
	}

	noti, err := s.gateway.VerifyNotification(values)
	if err != nil {
		return err
	}

	rawBlob, _ := json.Marshal(noti.Raw)

	return s.db.Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Where("order_number = ?", noti.OrderNumber).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		switch noti.TradeStatus {
		case payment.TradeStatusSuccess, payment.TradeStatusFinished:
			return s.applyPaymentSuccess(tx, &order, noti, rawBlob)
		case payment.TradeStatusClosed:
			return s.applyTradeClosed(tx, &order, rawBlob)
		default:
			// WAIT_BUYER_PAY and other intermediate states: acknowledge
			// without transitioning.
			log.Printf("order %s: callback with status %s, no transition", order.OrderNumber, noti.TradeStatus)
			return nil
		}
	})
}

// VerifyReturn checks the signature on the synchronous return redirect.
// The return carries no authority over order state; only the redirect
// target depends on it.
func (s *OrderService) VerifyReturn(values url.Values) error {
	if s.gateway == nil {
		return payment.ErrGatewayUnconfigured
	}
	return s.gateway.VerifyReturn(values)
}

func (s *OrderService) applyPaymentSuccess(tx *gorm.DB, order *model.Order, noti *payment.Notification, rawBlob []byte) error {
	// Replay of an already-processed payment: acknowledge so the gateway
	// stops retrying, activate nothing.
	if order.Status == model.OrderStatusCompleted {
		log.Printf("order %s: duplicate success callback, already completed", order.OrderNumber)
		return nil
	}

	if math.Abs(noti.TotalAmount-order.Amount) > amountTolerance {
		log.Printf("order %s: amount mismatch, callback %.2f vs order %.2f",
			order.OrderNumber, noti.TotalAmount, order.Amount)
		return ErrAmountMismatch
	}

	now := time.Now().UTC()

	// Payment that lands after the order left pending, or after the payment
	// window closed: the slot was released (or the sweep is about to) and
	// must not be re-taken. Record the callback for the reconciliation queue
	// and acknowledge, activating nothing.
	if order.Status != model.OrderStatusPending || order.Expired(now) {
		log.Printf("order %s: success callback in state %s (expires %s), storing for reconciliation",
			order.OrderNumber, order.Status, order.ExpiresAt.Format(time.RFC3339))
		return tx.Model(&model.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"transaction_id": noti.TradeNo,
				"raw_callback":   datatypes.JSON(rawBlob),
			}).Error
	}

	// The expires_at guard repeats the expiry check inside the conditional
	// update so a callback racing the sweep cannot complete an overdue order.
	result := tx.Model(&model.Order{}).
		Where("id = ? AND status = ? AND expires_at > ?", order.ID, model.OrderStatusPending, now).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusCompleted,
			"transaction_id": noti.TradeNo,
			"raw_callback":   datatypes.JSON(rawBlob),
			"completed_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to another callback or the expiry sweep;
		// acknowledge, the winner handled the transition.
		log.Printf("order %s: concurrent transition won, skipping", order.OrderNumber)
		return nil
	}

	order.Status = model.OrderStatusCompleted
	order.CompletedAt = &now

	if err := s.activation.ActivateForOrder(tx, order); err != nil {
		return err
	}

	log.Printf("order %s completed, trade %s, amount %.2f", order.OrderNumber, noti.TradeNo, noti.TotalAmount)
	return nil
}

func (s *OrderService) applyTradeClosed(tx *gorm.DB, order *model.Order, rawBlob []byte) error {
	result := tx.Model(&model.Order{}).
		Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusCancelled,
			"raw_callback": datatypes.JSON(rawBlob),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if order.TierID != nil {
		if err := s.tierService.ReleaseSlot(tx, *order.TierID); err != nil {
			return err
		}
	}
	log.Printf("order %s cancelled by gateway close", order.OrderNumber)
	return nil
}

// GetOrder returns one of the user's orders, lazily expiring it when the
// payment window has passed.
func (s *OrderService) GetOrder(userID uint, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := s.db.Preload("Tier").
		Where("order_number = ? AND user_id = ?", orderNumber, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderNumber, err)
	}

	if order.Expired(time.Now().UTC()) {
		if err := s.expireOrder(&order); err != nil {
			log.Printf("lazy expiry failed for order %s: %v", order.OrderNumber, err)
		}
	}

	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(userID uint, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []model.Order
	err := s.db.Preload("Tier").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels one of the user's pending orders, releasing its slot
// and best-effort closing the trade at the gateway.
func (s *OrderService) CancelOrder(ctx context.Context, userID uint, orderNumber string) error {
	var order model.Order
	err := s.db.Where("order_number = ? AND user_id = ?", orderNumber, userID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusCancelled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotCancellable
		}
		if order.TierID != nil {
			return s.tierService.ReleaseSlot(tx, *order.TierID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Closing the trade at the gateway keeps a late payment from landing
	// on a cancelled order. Failure here is tolerable: a late success
	// callback on a cancelled order is stored for reconciliation anyway.
	if s.gateway != nil {
		if err := s.gateway.CloseTrade(ctx, order.OrderNumber); err != nil {
			log.Printf("gateway close failed for cancelled order %s: %v", order.OrderNumber, err)
		}
	}

	log.Printf("order %s cancelled by user %d", order.OrderNumber, userID)
	return nil
}

// RefundOrder refunds a completed order and deactivates the membership it
// activated. Admin-only.
func (s *OrderService) RefundOrder(ctx context.Context, orderNumber string, reason string) error {
	if s.gateway == nil {
		return payment.ErrGatewayUnconfigured
	}

	var order model.Order
	err := s.db.Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if order.Status != model.OrderStatusCompleted {
		return ErrOrderNotRefundable
	}

	if err := s.gateway.Refund(ctx, order.OrderNumber, order.Amount, reason); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusCompleted).
			Update("status", model.OrderStatusRefunded)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotRefundable
		}
		if err := s.activation.DeactivateForOrder(tx, &order); err != nil {
			return err
		}
		log.Printf("order %s refunded: %s", order.OrderNumber, reason)
		return nil
	})
}

// ExpireDueOrders transitions pending orders past their payment window to
// expired and returns their slots. Each order transitions independently so
// one failure does not block the sweep. Called from the cron manager.
func (s *OrderService) ExpireDueOrders() (int, error) {
	now := time.Now().UTC()

	var due []model.Order
	err := s.db.Where("status = ? AND expires_at < ?", model.OrderStatusPending, now).
		Limit(500).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load due orders: %w", err)
	}

	expired := 0
	for i := range due {
		if err := s.expireOrder(&due[i]); err != nil {
			log.Printf("failed to expire order %s: %v", due[i].OrderNumber, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("expired %d overdue orders", expired)
	}
	return expired, nil
}

// expireOrder performs the pending->expired transition for one order with
// exactly-once slot release. The conditional update makes it safe against
// a concurrent success callback: whichever transition lands first wins.
func (s *OrderService) expireOrder(order *model.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusExpired)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		order.Status = model.OrderStatusExpired
		if order.TierID != nil {
			return s.tierService.ReleaseSlot(tx, *order.TierID)
		}
		return nil
	})
}
