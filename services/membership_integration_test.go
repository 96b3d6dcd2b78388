package services

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuebang/xuebang-api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Integration tests run against a real PostgreSQL instance because the slot
// accounting and order transitions depend on conditional-update semantics
// that sqlite or mocks would not exercise.
//
// Set RUN_INTEGRATION_TESTS=true plus DB_HOST/DB_USER_NAME/DB_PASSWORD/
// DB_NAME/DB_PORT to run them.

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_USER_NAME", "postgres"),
		getEnvOrDefault("DB_PASSWORD", "postgres"),
		getEnvOrDefault("DB_NAME", "xuebang_test"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_SSL_MODE", "disable"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.MembershipTier{},
		&model.UserMembership{},
		&model.Order{},
		&model.UsageLog{},
		&model.Conversation{},
		&model.ConversationMessage{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	user := model.User{
		Username:     "it_user_" + suffix,
		Email:        fmt.Sprintf("it_%s@example.com", suffix),
		PasswordHash: "x",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&user) })
	return &user
}

func createLimitedTier(t *testing.T, db *gorm.DB, quota int) *model.MembershipTier {
	t.Helper()

	tier := model.MembershipTier{
		Code:         "it_limited_" + uuid.NewString()[:8],
		Name:         "集成测试限量套餐",
		Level:        3,
		Price:        99,
		DurationDays: 365,
		IsLimited:    true,
		TotalQuota:   quota,
		Permission:   model.Permission{Features: model.AllFeatures},
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("failed to create test tier: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&tier) })
	return &tier
}

func createPendingOrder(t *testing.T, db *gorm.DB, user *model.User, tier *model.MembershipTier, expiresAt time.Time) *model.Order {
	t.Helper()

	order := model.Order{
		OrderNumber: GenerateOrderNumber(time.Now()),
		UserID:      user.ID,
		TierID:      &tier.ID,
		Amount:      tier.Price,
		Status:      model.OrderStatusPending,
		ExpiresAt:   expiresAt,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to create test order: %v", err)
	}
	t.Cleanup(func() { db.Unscoped().Delete(&order) })
	return &order
}

// TestConcurrentSlotReservation hammers a limited tier from many goroutines
// and verifies exactly quota reservations succeed, never more.
func TestConcurrentSlotReservation(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)

	const quota = 10
	const buyers = 30
	tier := createLimitedTier(t, db, quota)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- db.Transaction(func(tx *gorm.DB) error {
				return tierService.ReserveSlot(tx, tier.ID)
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded, soldOut := 0, 0
	for err := range results {
		switch err {
		case nil:
			succeeded++
		case ErrTierSoldOut:
			soldOut++
		default:
			t.Errorf("unexpected reservation error: %v", err)
		}
	}

	if succeeded != quota {
		t.Errorf("successful reservations = %d, want %d", succeeded, quota)
	}
	if soldOut != buyers-quota {
		t.Errorf("sold-out rejections = %d, want %d", soldOut, buyers-quota)
	}

	var reloaded model.MembershipTier
	if err := db.First(&reloaded, tier.ID).Error; err != nil {
		t.Fatalf("failed to reload tier: %v", err)
	}
	if reloaded.SoldCount != quota {
		t.Errorf("sold_count = %d, want %d", reloaded.SoldCount, quota)
	}
}

// TestSlotReleaseNeverGoesNegative releases more slots than were reserved
// and verifies the counter floors at zero.
func TestSlotReleaseNeverGoesNegative(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)

	tier := createLimitedTier(t, db, 5)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return tierService.ReserveSlot(tx, tier.ID)
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return tierService.ReleaseSlot(tx, tier.ID)
		}); err != nil {
			t.Fatalf("release failed: %v", err)
		}
	}

	var reloaded model.MembershipTier
	if err := db.First(&reloaded, tier.ID).Error; err != nil {
		t.Fatalf("failed to reload tier: %v", err)
	}
	if reloaded.SoldCount != 0 {
		t.Errorf("sold_count = %d, want 0 after over-release", reloaded.SoldCount)
	}
}

// TestExpireDueOrdersReleasesSlotOnce expires an overdue order through the
// sweep twice and verifies the slot comes back exactly once.
func TestExpireDueOrdersReleasesSlotOnce(t *testing.T) {
	db := setupIntegrationDB(t)
	tierService := NewTierService(db)
	activation := NewActivationService(db)
	orderService := NewOrderService(db, nil, tierService, activation)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)

	// Reserve the slot the order accounts for, then backdate its expiry
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tierService.ReserveSlot(tx, tier.ID)
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	order := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(-time.Minute))

	if _, err := orderService.ExpireDueOrders(); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if _, err := orderService.ExpireDueOrders(); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}

	var reloadedOrder model.Order
	if err := db.First(&reloadedOrder, order.ID).Error; err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	if reloadedOrder.Status != model.OrderStatusExpired {
		t.Errorf("order status = %s, want expired", reloadedOrder.Status)
	}

	var reloadedTier model.MembershipTier
	if err := db.First(&reloadedTier, tier.ID).Error; err != nil {
		t.Fatalf("failed to reload tier: %v", err)
	}
	if reloadedTier.SoldCount != 0 {
		t.Errorf("sold_count = %d, want 0 after single release", reloadedTier.SoldCount)
	}
}

// TestActivationIdempotent activates the same completed order twice and
// verifies only one membership row is created.
func TestActivationIdempotent(t *testing.T) {
	db := setupIntegrationDB(t)
	activation := NewActivationService(db)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)
	order := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(time.Hour))
	order.Status = model.OrderStatusCompleted

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			// Reload so the second pass sees the stored membership link
			var fresh model.Order
			if err := tx.First(&fresh, order.ID).Error; err != nil {
				return err
			}
			fresh.Status = model.OrderStatusCompleted
			return activation.ActivateForOrder(tx, &fresh)
		})
		if err != nil {
			t.Fatalf("activation pass %d failed: %v", i+1, err)
		}
	}

	var memberships []model.UserMembership
	if err := db.Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		t.Fatalf("failed to load memberships: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.UserMembership{})
	})
	if len(memberships) != 1 {
		t.Errorf("membership rows = %d, want 1", len(memberships))
	}
}

// TestExtensionKeepsOneActiveRow buys the same tier twice and verifies the
// second purchase extends coverage while leaving a single active row.
func TestExtensionKeepsOneActiveRow(t *testing.T) {
	db := setupIntegrationDB(t)
	activation := NewActivationService(db)

	user := createTestUser(t, db)
	tier := createLimitedTier(t, db, 5)
	t.Cleanup(func() {
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.UserMembership{})
	})

	first := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(time.Hour))
	second := createPendingOrder(t, db, user, tier, time.Now().UTC().Add(time.Hour))

	for _, order := range []*model.Order{first, second} {
		order.Status = model.OrderStatusCompleted
		if err := db.Transaction(func(tx *gorm.DB) error {
			return activation.ActivateForOrder(tx, order)
		}); err != nil {
			t.Fatalf("activation of %s failed: %v", order.OrderNumber, err)
		}
	}

	now := time.Now().UTC()
	var active []model.UserMembership
	err := db.Where("user_id = ? AND is_active = ? AND end_date > ?", user.ID, true, now).
		Find(&active).Error
	if err != nil {
		t.Fatalf("failed to load active memberships: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active membership rows = %d, want 1", len(active))
	}

	// Two 365-day purchases stack to roughly 730 days of coverage
	days := active[0].EndDate.Sub(now).Hours() / 24
	if days < 700 {
		t.Errorf("coverage = %.0f days, want roughly 730", days)
	}
}
