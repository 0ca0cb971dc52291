package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   string
	Tier string
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1", profile{ID: "1", Tier: "Pro"}, time.Minute))

	value, err := c.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "Pro", value.Tier)
}

func TestMemoryCache_GetMiss(t *testing.T) {
	c := NewMemoryCache[profile]()

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache[profile](WithMemoryClock(clock))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1", profile{ID: "1"}, 2*time.Minute))
	clock.Advance(time.Minute)
	_, err := c.Get(ctx, "user:1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = c.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache[profile](WithMemoryClock(clock), WithMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", profile{ID: "short"}, time.Minute))
	require.NoError(t, c.Set(ctx, "long", profile{ID: "long"}, time.Hour))

	// Full: the entry closest to expiry makes room.
	require.NoError(t, c.Set(ctx, "new", profile{ID: "new"}, time.Hour))
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, c.Len())

	// Overwriting an existing key never evicts.
	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, "long", profile{ID: "long", Tier: "Pro"}, time.Hour))
	_, err = c.Get(ctx, "new")
	assert.NoError(t, err)

	// Expired entries go before live ones.
	require.NoError(t, c.Set(ctx, "soon", profile{}, time.Minute))
	assert.Equal(t, 2, c.Len())
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "later", profile{}, time.Hour))
	v, err := c.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "Pro", v.Tier)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1", profile{ID: "1"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "user:1"))

	_, err := c.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Close(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", profile{}, time.Minute))
	require.NoError(t, c.Set(ctx, "b", profile{}, time.Minute))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Health(ctx))
}

func TestMemoryCache_GetWithFetch(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context, key string) (profile, error) {
		atomic.AddInt32(&calls, 1)
		return profile{ID: key, Tier: "Rookie"}, nil
	}

	first, err := c.GetWithFetch(ctx, "user:9", time.Minute, fetch)
	require.NoError(t, err)
	second, err := c.GetWithFetch(ctx, "user:9", time.Minute, fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMemoryCache_GetWithFetchError(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := c.GetWithFetch(ctx, "user:9", time.Minute, func(context.Context, string) (profile, error) {
		return profile{}, boom
	})
	assert.ErrorIs(t, err, boom)

	// Failed fetches are not cached
	_, err = c.Get(ctx, "user:9")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[profile]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k"
			if i%2 == 0 {
				_ = c.Set(ctx, key, profile{ID: key}, time.Minute)
			} else {
				_, _ = c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", v.ID)
}

func TestDecode_InvalidValue(t *testing.T) {
	_, err := decode[profile]("{not json")
	assert.ErrorIs(t, err, ErrInvalidValue)

	v, err := decode[profile](`{"ID":"7","Tier":"Legend"}`)
	require.NoError(t, err)
	assert.Equal(t, "Legend", v.Tier)
}
