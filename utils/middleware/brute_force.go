package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xuebang/xuebang-api/utils/cache"
)

const (
	// MaxLoginAttempts is the number of failed logins before lockout
	MaxLoginAttempts = 5

	// LockoutDuration is how long an account stays locked
	LockoutDuration = 15 * time.Minute

	// AttemptWindow is how long failed attempts are counted
	AttemptWindow = 15 * time.Minute
)

// BruteForceProtector tracks failed login attempts per account in Redis.
// When Redis is unavailable the protector degrades open so logins still work.
type BruteForceProtector struct {
	cache *cache.RedisCache
}

// NewBruteForceProtector creates a new brute force protector
func NewBruteForceProtector(c *cache.RedisCache) *BruteForceProtector {
	return &BruteForceProtector{cache: c}
}

func attemptsKey(identifier string) string {
	return fmt.Sprintf("login_attempts:%s", identifier)
}

func lockKey(identifier string) string {
	return fmt.Sprintf("login_lock:%s", identifier)
}

// IsLocked reports whether the account is currently locked and when the
// lock expires.
func (b *BruteForceProtector) IsLocked(ctx context.Context, identifier string) (bool, time.Time) {
	if b.cache == nil {
		return false, time.Time{}
	}

	exists, err := b.cache.Exists(ctx, lockKey(identifier))
	if err != nil {
		log.Printf("brute force check failed for %s: %v", identifier, err)
		return false, time.Time{}
	}
	if !exists {
		return false, time.Time{}
	}

	ttl, err := b.cache.TTL(ctx, lockKey(identifier))
	if err != nil || ttl <= 0 {
		return true, time.Now().Add(LockoutDuration)
	}
	return true, time.Now().Add(ttl)
}

// RecordFailure records a failed login attempt. Returns true when the
// account has just been locked.
func (b *BruteForceProtector) RecordFailure(ctx context.Context, identifier string) bool {
	if b.cache == nil {
		return false
	}

	key := attemptsKey(identifier)
	count, err := b.cache.Increment(ctx, key)
	if err != nil {
		log.Printf("failed to record login attempt for %s: %v", identifier, err)
		return false
	}

	if count == 1 {
		if err := b.cache.Expire(ctx, key, AttemptWindow); err != nil {
			log.Printf("failed to set attempt window for %s: %v", identifier, err)
		}
	}

	if count >= MaxLoginAttempts {
		if err := b.cache.Set(ctx, lockKey(identifier), "1", LockoutDuration); err != nil {
			log.Printf("failed to lock account %s: %v", identifier, err)
			return false
		}
		log.Printf("account locked after %d failed attempts: %s", count, identifier)
		return true
	}

	return false
}

// RecordSuccess clears failed attempt state after a successful login
func (b *BruteForceProtector) RecordSuccess(ctx context.Context, identifier string) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Delete(ctx, attemptsKey(identifier), lockKey(identifier)); err != nil {
		log.Printf("failed to clear login attempts for %s: %v", identifier, err)
	}
}
