package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chatbridge/internal/domain/shared"
)

func TestInMemoryStore_Ranked(t *testing.T) {
	store := NewInMemoryStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("add and score", func(t *testing.T) {
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q1", "a", 10))
		score, ok, err := store.GetScore(ctx, "q1", "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, float64(10), score)
	})

	t.Run("update keeps cardinality", func(t *testing.T) {
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q1", "a", 20))
		n, err := store.RankedCardinality(ctx, "q1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		score, _, _ := store.GetScore(ctx, "q1", "a")
		assert.Equal(t, float64(20), score)
	})

	t.Run("missing member", func(t *testing.T) {
		_, ok, err := store.GetScore(ctx, "q1", "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove lowest ranked", func(t *testing.T) {
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q2", "c", 3))
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q2", "a", 1))
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q2", "b", 2))

		require.NoError(t, store.RemoveLowestRanked(ctx, "q2", 1))

		_, ok, _ := store.GetScore(ctx, "q2", "a")
		assert.False(t, ok, "lowest scored member should be evicted")
		n, _ := store.RankedCardinality(ctx, "q2")
		assert.Equal(t, int64(2), n)
	})

	t.Run("ties broken by member", func(t *testing.T) {
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q3", "y", 5))
		require.NoError(t, store.AddOrUpdateRanked(ctx, "q3", "x", 5))
		require.NoError(t, store.RemoveLowestRanked(ctx, "q3", 1))

		_, ok, _ := store.GetScore(ctx, "q3", "x")
		assert.False(t, ok)
		_, ok, _ = store.GetScore(ctx, "q3", "y")
		assert.True(t, ok)
	})

	t.Run("queues are isolated", func(t *testing.T) {
		n, err := store.RankedCardinality(ctx, "empty")
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, store.RemoveLowestRanked(ctx, "empty", 1))
	})
}

func TestInMemoryStore_KeyValue(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "order:YT1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "order:YT1", "s1"))
	require.NoError(t, store.Set(ctx, "order:YT1", "s2"))
	v, ok, err := store.Get(ctx, "order:YT1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s2", v)

	require.NoError(t, store.AddMember(ctx, "set", "b"))
	require.NoError(t, store.AddMember(ctx, "set", "a"))
	require.NoError(t, store.AddMember(ctx, "set", "a"))
	members, err := store.Members(ctx, "set")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)
}

func TestInMemoryStore_PingAfterClose(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Ping(ctx), shared.ErrStore)
}
