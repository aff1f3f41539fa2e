package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestDeduplicator_MarkThenCheck(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	dedup := NewDeduplicator(client)
	commandID := fmt.Sprintf("test-cmd-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		client.Del(ctx, appliedKeyPrefix+commandID)
	})

	seen, err := dedup.AlreadyApplied(ctx, commandID)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, dedup.MarkApplied(ctx, commandID))

	seen, err = dedup.AlreadyApplied(ctx, commandID)
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := client.TTL(ctx, appliedKeyPrefix+commandID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
