package core

import (
	"context"
	"time"
)

// Cache holds member profiles between requests. UserService keys entries by
// user id and deletes them when the member row changes.
type Cache[T any] interface {
	// Get returns ErrCacheMiss (from package cache) for absent or expired keys.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
	Health(ctx context.Context) error

	// GetWithFetch reads through to fetch on a miss and stores the result.
	// The rueidisaside backend also collapses concurrent misses for a key.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetch func(ctx context.Context, key string) (T, error),
	) (T, error)
}
