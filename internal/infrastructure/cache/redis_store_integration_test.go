//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestRedisStore starts a throwaway Redis container for one test
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	store, err := NewRedisStore(RedisConfig{
		Host:      host,
		Port:      port.Int(),
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore_Ranked(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddOrUpdateRanked(ctx, "processed:side_b", "a", 1))
	require.NoError(t, store.AddOrUpdateRanked(ctx, "processed:side_b", "b", 2))
	require.NoError(t, store.AddOrUpdateRanked(ctx, "processed:side_b", "a", 3))

	n, err := store.RankedCardinality(ctx, "processed:side_b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.RemoveLowestRanked(ctx, "processed:side_b", 1))
	_, ok, err := store.GetScore(ctx, "processed:side_b", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	score, ok, err := store.GetScore(ctx, "processed:side_b", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(3), score)

	keys, err := store.GetClient().Keys(ctx, "test:*").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"test:processed:side_b"}, keys)
}

func TestRedisStore_KeyValue(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "order:YT1234567890123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "order:YT1234567890123", "s1"))
	v, ok, err := store.Get(ctx, "order:YT1234567890123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s1", v)

	require.NoError(t, store.AddMember(ctx, "session_orders:s1", "YT1234567890123"))
	require.NoError(t, store.AddMember(ctx, "session_orders:s1", "YT1234567890123"))
	members, err := store.Members(ctx, "session_orders:s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"YT1234567890123"}, members)

	assert.NoError(t, store.Ping(ctx))
}
