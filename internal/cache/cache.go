// Package cache holds the backends for the member profile cache: an
// in-process map for single-node installs and Redis through rueidis, with or
// without client-side caching.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
)

var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: invalid value")
)

// fetchThrough is the plain cache-aside read shared by backends without
// stampede protection. A failed write-back is ignored; the next read fetches
// again.
func fetchThrough[T any](
	ctx context.Context,
	c core.Cache[T],
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetch(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}
