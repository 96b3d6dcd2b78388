package cron

import (
	"fmt"
	"time"

	"github.com/xuebang/xuebang-api/model"
)

// ExpirePendingOrders transitions overdue pending orders to expired and
// returns their reserved slots.
func (m *CronManager) ExpirePendingOrders() {
	jobName := "expire_pending_orders"

	expired, err := m.orderService.ExpireDueOrders()
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("expired %d orders", expired))
}

// SweepExpiredMemberships flips is_active off on memberships whose end date
// has passed. Entitlement checks already filter on end_date, so this is
// housekeeping that keeps the active flag honest for reporting.
func (m *CronManager) SweepExpiredMemberships() {
	jobName := "sweep_expired_memberships"

	result := m.db.Model(&model.UserMembership{}).
		Where("is_active = ? AND end_date < ?", true, time.Now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("deactivated %d memberships", result.RowsAffected))
}

// CleanupOldData removes cron job logs older than 90 days.
func (m *CronManager) CleanupOldData() {
	jobName := "cleanup_old_data"
	cutoff := time.Now().AddDate(0, 0, -90)

	result := m.db.Where("started_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("deleted %d old job logs", result.RowsAffected))
}
