package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newTestCache(t *testing.T, config *Config) *Cache {
	t.Helper()
	c := New(config, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", map[string]any{"id": "42"}, time.Minute))

	entry, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "42"}, entry.Value)
	assert.True(t, entry.ExpiresAt.After(time.Now()))
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t, nil)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestZeroTTLStoresNothing(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", 0))
	require.NoError(t, c.Set(ctx, "k2", "v", -time.Second))

	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "k2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, c.Stats().Entries)
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, c.Stats().Entries, "the expired entry is evicted on read")
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 3, DefaultTTL: time.Minute, SweepInterval: time.Hour})
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, k, time.Minute))
	}

	// Touch "a" so "b" becomes the coldest entry.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "d", "d", time.Minute))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss, "the coldest entry is the one evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, err := c.Get(ctx, k)
		assert.NoError(t, err, "entry %q must survive", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestDeleteAndClear(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))
	require.NoError(t, c.Set(ctx, "k2", "v", time.Minute))

	c.Delete(ctx, "k1")
	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.Clear()
	assert.Zero(t, c.Stats().Entries)
}

func TestStatsCounters(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))
	_, _ = c.Get(ctx, "k1")
	_, _ = c.Get(ctx, "k1")
	_, _ = c.Get(ctx, "nope")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Positive(t, stats.SizeBytes)
}

func TestBackgroundSweepPurgesExpired(t *testing.T) {
	c := newTestCache(t, &Config{MaxEntries: 10, DefaultTTL: time.Minute, SweepInterval: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", "v", time.Minute))

	assert.Eventually(t, func() bool {
		return c.Stats().Entries == 1
	}, time.Second, 10*time.Millisecond, "the sweeper removes expired entries without reads")
}

func TestRedisSecondLevel(t *testing.T) {
	srv := miniredis.RunT(t)
	config := &Config{
		MaxEntries:    10,
		DefaultTTL:    time.Minute,
		SweepInterval: time.Hour,
		EnableRedis:   true,
		RedisAddr:     srv.Addr(),
	}
	ctx := context.Background()

	first := newTestCache(t, config)
	require.NoError(t, first.Set(ctx, "k1", map[string]any{"id": "42"}, time.Minute))
	assert.True(t, srv.Exists(redisKeyPrefix+"k1"))

	// A fresh cache with an empty local level rehydrates from Redis.
	second := newTestCache(t, config)
	entry, err := second.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "42"}, entry.Value)

	second.Delete(ctx, "k1")
	assert.False(t, srv.Exists(redisKeyPrefix + "k1"))
}

func TestRedisUnavailableDegradesToLocal(t *testing.T) {
	config := &Config{
		MaxEntries:    10,
		DefaultTTL:    time.Minute,
		SweepInterval: time.Hour,
		EnableRedis:   true,
		RedisAddr:     "127.0.0.1:1", // nothing listens here
	}
	c := newTestCache(t, config)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))

	entry, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v", entry.Value)
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("akamai_papi_listproperties", map[string]string{"query:contractId": "C-1", "path:group": "G-2"})
	b := Key("akamai_papi_listproperties", map[string]string{"path:group": "G-2", "query:contractId": "C-1"})
	assert.Equal(t, a, b, "parameter order never changes the key")

	c := Key("akamai_papi_listproperties", map[string]string{"query:contractId": "C-9"})
	assert.NotEqual(t, a, c)

	d := Key("akamai_dns_listzones", map[string]string{"query:contractId": "C-1", "path:group": "G-2"})
	assert.NotEqual(t, a, d, "operation name is part of the key")
}

func TestKeyProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := rapid.StringMatching(`[a-z_]{1,30}`).Draw(t, "op")
		params := rapid.MapOf(
			rapid.StringMatching(`[a-z:]{1,20}`),
			rapid.String(),
		).Draw(t, "params")

		first := Key(op, params)
		second := Key(op, params)
		assert.Equal(t, first, second)
		assert.Contains(t, first, op+":")
	})
}
