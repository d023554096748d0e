package idempotency

import (
	"context"
	"fmt"
	"time"

	"mspace-gateway/internal/persistence"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const responseTTL = time.Hour

// Store caches the serialized response of a dispatch action under the
// caller's Idempotency-Key. A replayed key returns the cached envelope
// instead of dispatching (and paying) again.
type Store struct {
	redis  *persistence.RedisClient
	logger *zap.Logger
}

func NewStore(redis *persistence.RedisClient, logger *zap.Logger) *Store {
	return &Store{redis: redis, logger: logger}
}

func (s *Store) GetResponse(ctx context.Context, accountID uuid.UUID, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	cached, err := s.redis.Get(ctx, s.cacheKey(accountID, key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("idempotency lookup failed", zap.Error(err))
		return nil, false
	}
	return cached, true
}

func (s *Store) StoreResponse(ctx context.Context, accountID uuid.UUID, key string, response []byte) {
	if key == "" {
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(accountID, key), response, responseTTL).Err(); err != nil {
		s.logger.Warn("failed to cache idempotent response",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) cacheKey(accountID uuid.UUID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", accountID, key)
}
