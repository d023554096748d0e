package idempotency

import (
	"context"
	"testing"

	"mspace-gateway/internal/persistence"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(&persistence.RedisClient{Client: client}, zap.NewNop())
}

func TestStoreAndReplayResponse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accountID := uuid.New()
	response := []byte(`{"success":true,"data":{"sent_count":3}}`)

	if _, ok := store.GetResponse(ctx, accountID, "req-1"); ok {
		t.Fatal("unexpected cache hit before store")
	}

	store.StoreResponse(ctx, accountID, "req-1", response)

	cached, ok := store.GetResponse(ctx, accountID, "req-1")
	if !ok {
		t.Fatal("expected cache hit after store")
	}
	if string(cached) != string(response) {
		t.Fatalf("cached response differs: %s", cached)
	}
}

func TestResponsesScopedPerAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.StoreResponse(ctx, uuid.New(), "req-1", []byte(`{"success":true}`))

	if _, ok := store.GetResponse(ctx, uuid.New(), "req-1"); ok {
		t.Fatal("key leaked across accounts")
	}
}

func TestEmptyKeyIsNeverCached(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accountID := uuid.New()

	store.StoreResponse(ctx, accountID, "", []byte(`{"success":true}`))

	if _, ok := store.GetResponse(ctx, accountID, ""); ok {
		t.Fatal("empty idempotency key must bypass the cache")
	}
}
