package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/services/payment"
	"gorm.io/gorm"
)

// fakeGateway stands in for Alipay so callback handling can be exercised
// against a real database without signed notifications.
type fakeGateway struct{}

func (fakeGateway) CreatePayment(ctx context.Context, req payment.PaymentRequest) (string, error) {
	return "https://pay.test/" + req.OrderNumber, nil
}

func (fakeGateway) VerifyNotification(values url.Values) (*payment.Notification, error) {
	amount, err := strconv.ParseFloat(values.Get("total_amount"), 64)
	if err != nil {
		return nil, err
	}
	return &payment.Notification{
		OrderNumber: values.Get("out_trade_no"),
		TradeNo:     values.Get("trade_no"),
		TradeStatus: values.Get("trade_status"),
		TotalAmount: amount,
		Raw:         values,
	}, nil
}

func (fakeGateway) VerifyReturn(values url.Values) error { return nil }

func (fakeGateway) QueryTrade(ctx context.Context, orderNumber string) (*payment.Notification, error) {
	return nil, errors.New("not supported")
}

func (fakeGateway) CloseTrade(ctx context.Context, orderNumber string) error { return nil }

func (fakeGateway) Refund(ctx context.Context, orderNumber string, amount float64, reason string) error {
	return nil
}

func successCallback(order *model.Order, tradeNo string) url.Values {
	return url.Values{
		"out_trade_no": {order.OrderNumber},
		"trade_no":     {tradeNo},
		"trade_status": {payment.TradeStatusSuccess},
		"total_amount": {strconv.FormatFloat(order.Amount, 'f', 2, 64)},
	}
}

// TestSuccessCallbackReplayActivatesOnce delivers the same TRADE_SUCCESS
// callback twice and verifies exactly one completion, one membership and one
// consumed slot.
func TestSuccessCallbackReplayActivatesOnce(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)
	activation := NewActivationService(db)
	orderService := NewOrderService(db, fakeGateway{}, tierService, activation)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.UserMembership{})
	})

	if err := db.Transaction(func(tx *gorm.DB) error {
		return tierService.ReserveSlot(tx, tier.ID)
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	order := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(model.OrderTTL))

	values := successCallback(order, "fake_trade_"+uuid.NewString()[:8])
	for i := 0; i < 2; i++ {
		if err := orderService.HandleNotification(context.Background(), values); err != nil {
			t.Fatalf("callback delivery %d failed: %v", i+1, err)
		}
	}

	var reloaded model.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	if reloaded.Status != model.OrderStatusCompleted {
		t.Errorf("order status = %s, want completed", reloaded.Status)
	}
	if reloaded.MembershipRecordID == nil {
		t.Error("completed order carries no membership record link")
	}

	var memberships []model.UserMembership
	if err := db.Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		t.Fatalf("failed to load memberships: %v", err)
	}
	if len(memberships) != 1 {
		t.Errorf("membership rows = %d, want 1", len(memberships))
	}

	var reloadedTier model.MembershipTier
	if err := db.First(&reloadedTier, tier.ID).Error; err != nil {
		t.Fatalf("failed to reload tier: %v", err)
	}
	if reloadedTier.SoldCount != 1 {
		t.Errorf("sold_count = %d, want 1", reloadedTier.SoldCount)
	}
}

// TestLateSuccessCallbackDoesNotActivate sends TRADE_SUCCESS for an order
// well past its payment window and verifies the callback is acknowledged but
// stored for reconciliation instead of completing the order.
func TestLateSuccessCallbackDoesNotActivate(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)
	activation := NewActivationService(db)
	orderService := NewOrderService(db, fakeGateway{}, tierService, activation)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return tierService.ReserveSlot(tx, tier.ID)
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	order := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(-20*time.Minute))

	tradeNo := "fake_trade_" + uuid.NewString()[:8]
	if err := orderService.HandleNotification(context.Background(), successCallback(order, tradeNo)); err != nil {
		t.Fatalf("late callback should be acknowledged, got: %v", err)
	}

	var reloaded model.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	if reloaded.Status == model.OrderStatusCompleted {
		t.Error("late callback completed an order past its payment window")
	}
	if reloaded.TransactionID == nil || *reloaded.TransactionID != tradeNo {
		t.Error("late callback trade number was not stored for reconciliation")
	}

	var memberships int64
	if err := db.Model(&model.UserMembership{}).Where("user_id = ?", user.ID).Count(&memberships).Error; err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if memberships != 0 {
		t.Errorf("membership rows = %d, want 0", memberships)
	}

	// The sweep still owns the transition and the slot release.
	if _, err := orderService.ExpireDueOrders(); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	if reloaded.Status != model.OrderStatusExpired {
		t.Errorf("order status after sweep = %s, want expired", reloaded.Status)
	}
	var reloadedTier model.MembershipTier
	if err := db.First(&reloadedTier, tier.ID).Error; err != nil {
		t.Fatalf("failed to reload tier: %v", err)
	}
	if reloadedTier.SoldCount != 0 {
		t.Errorf("sold_count = %d, want 0 after expiry release", reloadedTier.SoldCount)
	}
}

func createQuotaTier(t *testing.T, db *gorm.DB, feature model.FeatureCode, limit int) *model.MembershipTier {
	t.Helper()

	tier := model.MembershipTier{
		Code:         "it_quota_" + uuid.NewString()[:8],
		Name:         "集成测试限额套餐",
		Level:        2,
		Price:        49,
		DurationDays: 30,
		Permission: model.Permission{
			Features: model.AllFeatures,
			Limits: map[model.FeatureCode]model.WindowedLimit{
				feature: {Limit: limit, Window: model.WindowDaily},
			},
		},
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("failed to create quota tier: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&tier) })
	return &tier
}

func createActiveMembership(t *testing.T, db *gorm.DB, user *model.User, tier *model.MembershipTier) {
	t.Helper()

	now := time.Now().UTC()
	membership := model.UserMembership{
		UserID:    user.ID,
		TierID:    tier.ID,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, tier.DurationDays),
		IsActive:  true,
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&membership) })
}

// TestDailyQuotaDeniedUntilWindowResets exhausts a daily limit, verifies
// further access is denied, then moves the consumed usage behind the UTC
// midnight boundary and verifies access comes back.
func TestDailyQuotaDeniedUntilWindowResets(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)
	entitlement := NewEntitlementService(db, tierService)

	const limit = 3
	user := createTestUser(t, db)
	tier := createQuotaTier(t, db, model.FeatureAIAsk, limit)
	createActiveMembership(t, db, user, tier)
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.UsageLog{})
	})

	for i := 0; i < limit; i++ {
		if _, err := entitlement.CheckFeatureAccess(user.ID, model.FeatureAIAsk); err != nil {
			t.Fatalf("access check %d failed before limit: %v", i+1, err)
		}
		if err := entitlement.RecordUsage(user.ID, model.FeatureAIAsk, nil); err != nil {
			t.Fatalf("failed to record usage %d: %v", i+1, err)
		}
	}

	_, err := entitlement.CheckFeatureAccess(user.ID, model.FeatureAIAsk)
	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("access at limit returned %v, want AccessDeniedError", err)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("denial wraps %v, want ErrQuotaExceeded", denied.Err)
	}

	// Push the consumed usage into yesterday's window; the same count no
	// longer falls inside today's daily window.
	yesterday := WindowStart(model.WindowDaily, time.Now()).Add(-time.Hour)
	if err := db.Model(&model.UsageLog{}).
		Where("user_id = ? AND feature_code = ?", user.ID, model.FeatureAIAsk).
		Update("created_at", yesterday).Error; err != nil {
		t.Fatalf("failed to backdate usage: %v", err)
	}

	if _, err := entitlement.CheckFeatureAccess(user.ID, model.FeatureAIAsk); err != nil {
		t.Errorf("access after window reset failed: %v", err)
	}
}

// TestFailedCompletionConsumesNoQuota points the pipeline at an unreachable
// model endpoint and verifies a failed ai_ask turn records no usage.
func TestFailedCompletionConsumesNoQuota(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)
	entitlement := NewEntitlementService(db, tierService)
	conversation := NewConversationService(db)

	client := llm.NewClient(llm.Config{
		APIKey:  "test",
		BaseURL: "http://127.0.0.1:1",
		Timeout: 2 * time.Second,
	})
	aiService := NewAIService(client, conversation, entitlement)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)
	createActiveMembership(t, db, user, tier)
	t.Cleanup(func() {
		var convIDs []uint
		db.Model(&model.Conversation{}).Where("user_id = ?", user.ID).Pluck("id", &convIDs)
		db.Unscoped().Where("conversation_id IN ?", convIDs).Delete(&model.ConversationMessage{})
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.Conversation{})
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.UsageLog{})
	})

	if _, err := aiService.Ask(context.Background(), user.ID, "", "什么是递归？"); err == nil {
		t.Fatal("ask against unreachable endpoint succeeded")
	}

	var used int64
	if err := db.Model(&model.UsageLog{}).Where("user_id = ?", user.ID).Count(&used).Error; err != nil {
		t.Fatalf("failed to count usage: %v", err)
	}
	if used != 0 {
		t.Errorf("usage rows after failed turn = %d, want 0", used)
	}
}
