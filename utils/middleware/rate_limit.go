package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/utils/cache"
	"github.com/xuebang/xuebang-api/utils/response"
)

// featureRates maps each feature to its per-minute request limit.
// Heavier pipelines (document parsing, long generations) get lower limits.
var featureRates = map[model.FeatureCode]int64{
	model.FeatureAIAsk:           20,
	model.FeatureProgrammingHelp: 15,
	model.FeatureCodeReview:      10,
	model.FeatureCodeExplain:     15,
	model.FeatureDebugHelp:       15,
	model.FeatureGenerateQuestion: 3,
	model.FeatureGenerateLecture:  3,
	model.FeatureVideoSummary:     5,
	model.FeatureVideoToLecture:   3,
	model.FeatureGradeAssignment:  5,
}

const defaultRate int64 = 10

// FeatureRateLimiter applies a per-user per-minute limit for each feature
// using Redis counters. If Redis is unavailable the limiter degrades open.
type FeatureRateLimiter struct {
	cache *cache.RedisCache
}

// NewFeatureRateLimiter creates a new feature rate limiter
func NewFeatureRateLimiter(c *cache.RedisCache) *FeatureRateLimiter {
	return &FeatureRateLimiter{cache: c}
}

// Limit returns middleware enforcing the per-minute limit for feature
func (l *FeatureRateLimiter) Limit(feature model.FeatureCode) fiber.Handler {
	rate, ok := featureRates[feature]
	if !ok {
		rate = defaultRate
	}

	return func(c *fiber.Ctx) error {
		if l.cache == nil {
			return c.Next()
		}

		userID, ok := GetUserID(c)
		if !ok {
			return c.Next()
		}

		key := fmt.Sprintf("rate:%s:%d:%s", feature, userID, time.Now().UTC().Format("200601021504"))
		count, err := l.cache.Increment(c.Context(), key)
		if err != nil {
			log.Printf("rate limit check failed for user %d feature %s: %v", userID, feature, err)
			return c.Next()
		}

		if count == 1 {
			if err := l.cache.Expire(c.Context(), key, 2*time.Minute); err != nil {
				log.Printf("failed to set rate limit expiry: %v", err)
			}
		}

		if count > rate {
			return response.TooManyRequests(c, "请求过于频繁，请稍后再试")
		}

		return c.Next()
	}
}
