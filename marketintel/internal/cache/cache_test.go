package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &Redis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedis_SetGet(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "scraper:cache:abc", "<html>", time.Hour))

	val, ok, err := c.Get(ctx, "scraper:cache:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>", val)
}

func TestRedis_MissIsNotAnError(t *testing.T) {
	c, _ := setupTestRedis(t)

	val, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestRedis_TTLExpiry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("k"))

	mr.FastForward(time.Hour + time.Second)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	require.NoError(t, c.Delete(ctx))
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedis_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Set(context.Background(), "x", "y", 0))
	got, err := mr.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Hour))
	val, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	now = now.Add(time.Hour)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry must expire at its TTL")

	require.NoError(t, m.Set(ctx, "forever", "v", 0))
	now = now.Add(1000 * time.Hour)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "forever"))
	_, ok, _ = m.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestMemory_BoundedSize(t *testing.T) {
	// WHAT: a full cache sweeps expired keys first, then evicts the one closest to expiry.
	// WHY: unique page URLs would otherwise grow the map for the life of the process.
	m := NewMemory(WithMaxEntries(2))
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "soon", "1", time.Hour))
	require.NoError(t, m.Set(ctx, "later", "2", 2*time.Hour))
	require.NoError(t, m.Set(ctx, "later", "2b", 2*time.Hour))
	assert.Equal(t, 2, m.Len(), "overwriting a key must not evict")

	require.NoError(t, m.Set(ctx, "forever", "3", 0))
	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "soon")
	assert.False(t, ok, "entry closest to expiry is evicted")
	val, ok, _ := m.Get(ctx, "later")
	assert.True(t, ok)
	assert.Equal(t, "2b", val)

	now = now.Add(3 * time.Hour)
	require.NoError(t, m.Set(ctx, "fresh", "4", time.Hour))
	assert.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok, "sweeping expired keys leaves room without evicting live ones")
	_, ok, _ = m.Get(ctx, "fresh")
	assert.True(t, ok)
}

var (
	_ Cache = (*Redis)(nil)
	_ Cache = (*Memory)(nil)
)
