package coordcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/provider"
	"github.com/coordcache/coordcache/provider/ristretto"
)

func TestNewCacheContextValidation(t *testing.T) {
	_, err := NewCacheContext(ContextOptions{})
	assert.Error(t, err)

	cc, _ := newTestContext(t, testConfig(), nil)
	_, err = New[place](nil, codec.JSON[place]{})
	assert.Error(t, err)
	_, err = New[place](cc, nil)
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	cache, cc, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "places", "p1", place{ID: "p1"}, 0))
	cc.Invalidate(ctx, "places", "p1")

	assert.False(t, s.Exists("test:places:p1"))

	stats := cc.Statistics(ctx, "places")
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestInvalidateBatchDeduplicates(t *testing.T) {
	cache, cc, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "places", "a", place{ID: "a"}, 0))
	require.NoError(t, cache.Put(ctx, "places", "b", place{ID: "b"}, 0))

	cc.InvalidateBatch(ctx, "places", []string{"a", "a", "b"})

	assert.False(t, s.Exists("test:places:a"))
	assert.False(t, s.Exists("test:places:b"))

	stats := cc.Statistics(ctx, "places")
	assert.Equal(t, int64(2), stats.Evictions)
}

func TestInvalidateByPatternIsolation(t *testing.T) {
	cache, cc, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "places", "seoul:1", place{ID: "1"}, 0))
	require.NoError(t, cache.Put(ctx, "places", "seoul:2", place{ID: "2"}, 0))
	require.NoError(t, cache.Put(ctx, "places", "busan:1", place{ID: "3"}, 0))
	// sibling cache whose keys would match the raw pattern
	require.NoError(t, cache.Put(ctx, "reviews", "seoul:1", place{ID: "4"}, 0))

	evicted := cc.InvalidateByPattern(ctx, "places", "seoul*")
	assert.Equal(t, 2, evicted)

	assert.False(t, s.Exists("test:places:seoul:1"))
	assert.False(t, s.Exists("test:places:seoul:2"))
	assert.True(t, s.Exists("test:places:busan:1"))
	assert.True(t, s.Exists("test:reviews:seoul:1"))
}

func TestInvalidateByPatternNoMatches(t *testing.T) {
	_, cc, _ := newTestCache(t)
	assert.Zero(t, cc.InvalidateByPattern(context.Background(), "places", "nothing*"))
}

func TestRelatedInvalidationRules(t *testing.T) {
	cfg := testConfig()
	cfg.InvalidationRules = map[string][]InvalidationRule{
		"places": {
			{Cache: "place-nearby", Pattern: "{key}*"},
			{Cache: "place-details", Key: "{key}"},
		},
	}
	cc, s := newTestContext(t, cfg, nil)
	cache, err := New[place](cc, codec.JSON[place]{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "places", "seoul", place{ID: "seoul"}, 0))
	require.NoError(t, cache.Put(ctx, "place-nearby", "seoul:500m", place{}, 0))
	require.NoError(t, cache.Put(ctx, "place-nearby", "seoul:1km", place{}, 0))
	require.NoError(t, cache.Put(ctx, "place-nearby", "busan:500m", place{}, 0))
	require.NoError(t, cache.Put(ctx, "place-details", "seoul", place{}, 0))

	cc.Invalidate(ctx, "places", "seoul")

	assert.False(t, s.Exists("test:places:seoul"))
	assert.False(t, s.Exists("test:place-nearby:seoul:500m"))
	assert.False(t, s.Exists("test:place-nearby:seoul:1km"))
	assert.False(t, s.Exists("test:place-details:seoul"))
	// unrelated keys survive
	assert.True(t, s.Exists("test:place-nearby:busan:500m"))
}

func TestLocalTierServesReads(t *testing.T) {
	tier, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)

	cc, s := newTestContext(t, testConfig(), func(o *ContextOptions) {
		o.LocalTiers = map[string]provider.Provider{"hot": tier}
	})
	cache, err := New[place](cc, codec.JSON[place]{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "hot", "h1", place{ID: "h1", Name: "Local"}, time.Minute))

	// served from memory; nothing hit the remote store
	v, ok, err := cache.Get(ctx, "hot", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Local", v.Name)
	assert.False(t, s.Exists("test:hot:h1"))

	cc.Invalidate(ctx, "hot", "h1")
	_, ok, err = cache.Get(ctx, "hot", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultiLevelGetPromotesIntoLocalTier(t *testing.T) {
	tier, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)

	cc, _ := newTestContext(t, testConfig(), func(o *ContextOptions) {
		o.LocalTiers = map[string]provider.Provider{"hot": tier}
	})
	cache, err := New[place](cc, codec.JSON[place]{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "shared", "m1", place{ID: "m1", Name: "Tiered"}, 0))

	v, ok, err := cache.MultiLevelGet(ctx, []string{"hot", "shared"}, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tiered", v.Name)

	// promoted into the in-process tier
	raw, ok, err := tier.Get(ctx, "test:hot:m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, raw)
}

func TestPatternInvalidationSkipsLocalTier(t *testing.T) {
	tier, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)

	cc, _ := newTestContext(t, testConfig(), func(o *ContextOptions) {
		o.LocalTiers = map[string]provider.Provider{"hot": tier}
	})

	assert.Zero(t, cc.InvalidateByPattern(context.Background(), "hot", "*"))
}

func TestStatisticsLifecycle(t *testing.T) {
	cache, cc, _ := newTestCache(t)
	ctx := context.Background()

	stats := cc.Statistics(ctx, "places")
	assert.Equal(t, "places", stats.CacheName)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.HitRate)

	_, err := cache.GetOrLoad(ctx, "places", "s1", 0, func(ctx context.Context) (place, error) {
		return place{ID: "s1"}, nil
	})
	require.NoError(t, err)
	_, _, err = cache.Get(ctx, "places", "s1")
	require.NoError(t, err)
	cc.Invalidate(ctx, "places", "s1")

	stats = cc.Statistics(ctx, "places")
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)

	require.NoError(t, cc.ResetStatistics(ctx, "places"))
	stats = cc.Statistics(ctx, "places")
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Evictions)
}

func TestWithLockHelper(t *testing.T) {
	_, cc, _ := newTestCache(t)
	ctx := context.Background()

	n, err := WithLock(ctx, cc, "jobs:rebuild", func(ctx context.Context) (int, error) {
		locked, err := cc.Locks().IsLocked(ctx, "jobs:rebuild")
		require.NoError(t, err)
		assert.True(t, locked)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	locked, err := cc.Locks().IsLocked(ctx, "jobs:rebuild")
	require.NoError(t, err)
	assert.False(t, locked)
}
