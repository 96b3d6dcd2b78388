package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// PaymentMethod selects the gateway surface used to pay.
type PaymentMethod string

const (
	PaymentMethodAlipayWeb PaymentMethod = "alipay_web"
	PaymentMethodAlipayWap PaymentMethod = "alipay_wap"
)

// OrderTTL is the window during which a pending order may be paid.
const OrderTTL = 15 * time.Minute

// Order is a single purchase attempt. Status transitions are one-way:
// pending moves to completed, expired, cancelled or failed; completed may
// move to refunded. All transitions go through conditional updates so that
// concurrent gateway callbacks and sweeps stay idempotent.
type Order struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	OrderNumber    string         `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_number"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	TierID         *uint          `gorm:"index" json:"tier_id"` // SET NULL when the tier is deleted
	Amount         float64        `gorm:"not null" json:"amount"`
	OriginalAmount float64        `json:"original_amount"`
	DiscountAmount float64        `json:"discount_amount"`
	PaymentMethod  PaymentMethod  `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentURL     string         `gorm:"type:text" json:"payment_url,omitempty"`
	Status         OrderStatus    `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// Gateway-assigned fields, nullable until the callback arrives.
	TransactionID *string        `gorm:"type:varchar(100);uniqueIndex" json:"transaction_id,omitempty"`
	RawCallback   datatypes.JSON `gorm:"type:jsonb" json:"-"`

	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// The membership row this order activated. Single direction of
	// ownership: UserMembership does not reference the order back.
	MembershipRecordID *uint `json:"membership_record_id,omitempty"`

	// Relationships
	User User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tier *MembershipTier `gorm:"foreignKey:TierID;constraint:OnDelete:SET NULL" json:"tier,omitempty"`
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}

// Expired reports whether a pending order is past its payment window.
func (o *Order) Expired(now time.Time) bool {
	return o.Status == OrderStatusPending && now.After(o.ExpiresAt)
}

// Terminal reports whether no further transition except refund is possible.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded,
		OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}
