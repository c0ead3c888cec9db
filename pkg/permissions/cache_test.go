package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jitaccess/pkg/observability"
)

func setupCachedStore(t *testing.T) (*CachedStore, *SQLStore, *miniredis.Miniredis, *observability.Metrics) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	backing := NewSQLStore(setupTestDB(t))
	return NewCachedStore(backing, client, 10, time.Minute, metrics), backing, mr, metrics
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, backing, mr, metrics := setupCachedStore(t)

	info := samplePermission("Admin", "123456789012")
	require.NoError(t, backing.Create(ctx, info))

	got, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, info.PermissionID, got.PermissionID)
	assert.True(t, mr.Exists(cacheKey(info.PermissionID)))

	_, err = cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("l1")))
}

func TestCachedStore_RedisHitFillsL1(t *testing.T) {
	ctx := context.Background()
	cached, backing, _, metrics := setupCachedStore(t)

	info := samplePermission("Admin", "123456789012")
	require.NoError(t, backing.Create(ctx, info))

	_, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)

	// drop L1 only; the next read must come from Redis
	cached.l1.Purge()
	_, err = cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("redis")))
}

func TestCachedStore_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	cached, _, mr, _ := setupCachedStore(t)

	info := samplePermission("Admin", "123456789012")
	require.NoError(t, cached.Create(ctx, info))

	_, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)

	info.Description = "updated"
	require.NoError(t, cached.Update(ctx, info))
	assert.False(t, mr.Exists(cacheKey(info.PermissionID)))

	got, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)

	require.NoError(t, cached.Delete(ctx, info.PermissionID))
	_, err = cached.Get(ctx, info.PermissionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	cached, backing, mr, _ := setupCachedStore(t)

	info := samplePermission("Admin", "123456789012")
	require.NoError(t, backing.Create(ctx, info))
	require.NoError(t, mr.Set(cacheKey(info.PermissionID), "{not json"))

	got, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, info.PermissionID, got.PermissionID)
}

func TestCachedStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedStore(NewSQLStore(setupTestDB(t)), nil, 10, time.Minute, nil)

	info := samplePermission("Admin", "123456789012")
	require.NoError(t, cached.Create(ctx, info))

	first, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	first.ManagedPolicyNames[0] = "mutated"

	second, err := cached.Get(ctx, info.PermissionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ReadOnlyAccess"}, second.ManagedPolicyNames)
}
