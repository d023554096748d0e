package rate

import (
	"context"
	"fmt"
	"time"

	"mspace-gateway/internal/persistence"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a per-account token bucket kept in Redis, refilled at rps
// tokens per second up to burst.
type Limiter struct {
	redis  *persistence.RedisClient
	logger *zap.Logger
	rps    int
	burst  int
}

func NewLimiter(redis *persistence.RedisClient, logger *zap.Logger, rps, burst int) *Limiter {
	return &Limiter{
		redis:  redis,
		logger: logger,
		rps:    rps,
		burst:  burst,
	}
}

// Allow consumes one token for the account, reporting how long to wait
// when the bucket is empty.
func (l *Limiter) Allow(ctx context.Context, accountID uuid.UUID) (bool, time.Duration, error) {
	key := fmt.Sprintf("rate_limit:%s", accountID)
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	currentTokens := l.burst
	lastRefill := windowStart

	stored, err := l.redis.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("rate limit read: %w", err)
	}
	if err != redis.Nil {
		var lastRefillUnix int64
		fmt.Sscanf(stored, "%d:%d", &currentTokens, &lastRefillUnix)
		lastRefill = time.Unix(lastRefillUnix, 0)

		elapsed := windowStart.Sub(lastRefill)
		currentTokens = min(currentTokens+int(elapsed.Seconds())*l.rps, l.burst)
	}

	if currentTokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		return false, retryAfter, nil
	}

	currentTokens--

	newValue := fmt.Sprintf("%d:%d", currentTokens, windowStart.Unix())
	if err := l.redis.Set(ctx, key, newValue, time.Minute).Err(); err != nil {
		l.logger.Warn("rate limit write failed", zap.Error(err))
	}

	return true, 0, nil
}

// Reset clears the bucket for an account.
func (l *Limiter) Reset(ctx context.Context, accountID uuid.UUID) error {
	return l.redis.Del(ctx, fmt.Sprintf("rate_limit:%s", accountID)).Err()
}
