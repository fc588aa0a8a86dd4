//go:build integration
// +build integration

package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRevocationStore(t *testing.T) {
	addr := os.Getenv("REDIS_URI")
	if addr == "" {
		t.Skip("REDIS_URI not set")
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: os.Getenv("REDIS_PW"),
	})
	defer rdb.Close()
	require.NoError(t, rdb.Ping().Err())

	store := &RedisRevocationStore{Redis: rdb}
	ctx := context.Background()
	sessionID := uuid.New().String()

	revoked, err := store.Revoked(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, sessionID, time.Minute))

	revoked, err = store.Revoked(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := rdb.TTL(revocationKey(sessionID)).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	// an already expired token needs no entry
	expired := uuid.New().String()
	require.NoError(t, store.Revoke(ctx, expired, -time.Second))
	revoked, err = store.Revoked(ctx, expired)
	require.NoError(t, err)
	assert.False(t, revoked)
}
