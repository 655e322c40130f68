package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

func setupCache(t *testing.T, ttl time.Duration) (*ResolutionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResolutionCache(client, ttl), mr
}

func sampleResolution() (domain.Address, domain.Resolution) {
	q := domain.Address{Street: "Dorpstraat", HouseNumber: "28", City: "Amsterdam"}
	rec := domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "", domain.NumberTypeEven, 2, 40)
	addr := rec.Address()
	addr.HouseNumber = "28"
	return q, domain.Resolution{
		Matched:    true,
		Query:      q,
		Address:    addr,
		Record:     rec,
		Score:      12.5,
		Considered: 1,
	}
}

func TestResolutionCache_SetGet(t *testing.T) {
	c, _ := setupCache(t, time.Minute)
	ctx := context.Background()
	q, res := sampleResolution()

	_, ok, err := c.Get(ctx, q)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, q, res))

	got, ok, err := c.Get(ctx, q)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res, got)
}

func TestResolutionCache_Expires(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	q, res := sampleResolution()

	require.NoError(t, c.Set(ctx, q, res))
	assert.Equal(t, time.Minute, mr.TTL(Key(q)))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, q)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolutionCache_Invalidate(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	q, res := sampleResolution()

	require.NoError(t, c.Set(ctx, q, res))
	other := q
	other.HouseNumber = "30"
	require.NoError(t, c.Set(ctx, other, res))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Invalidate(ctx))

	_, ok, err := c.Get(ctx, q)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"))
}

func TestResolutionCache_CorruptEntry(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	q, _ := sampleResolution()
	require.NoError(t, mr.Set(Key(q), "{not json"))

	_, _, err := c.Get(context.Background(), q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal resolution")
}

func TestResolutionCache_RedisDown(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	mr.Close()
	q, res := sampleResolution()

	_, _, err := c.Get(context.Background(), q)
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), q, res))
	assert.Error(t, c.Ping(context.Background()))
}

func TestKey_DependsOnEveryField(t *testing.T) {
	q, _ := sampleResolution()
	other := q
	other.HouseNumberAffix = "a"

	assert.Equal(t, Key(q), Key(q))
	assert.NotEqual(t, Key(q), Key(other))
	assert.Contains(t, Key(q), keyPrefix)
}
