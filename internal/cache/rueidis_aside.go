package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisaside"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*RueidisAsideCache[struct{}])(nil)

// RueidisAsideCache implements core.Cache using rueidisaside.
// Uses rueidis' client-side caching with RESP3 invalidation, and collapses
// concurrent misses for the same key into one fetch.
// Suitable for multi-instance deployments with hot profile keys.
type RueidisAsideCache[T any] struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisAsideCache creates a Redis cache with client-side caching.
// clientTTL is the local cache TTL; Redis invalidates the local copy when a
// key changes.
func NewRueidisAsideCache[T any](
	addr, password string,
	db int,
	keyPrefix string,
	clientTTL time.Duration,
	cacheSizeMB int,
) (*RueidisAsideCache[T], error) {
	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{
		ClientOption: rueidis.ClientOption{
			InitAddress:       []string{addr},
			Password:          password,
			SelectDB:          db,
			CacheSizeEachConn: cacheSizeMB * 1024 * 1024,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	return &RueidisAsideCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
		clientTTL: clientTTL,
	}, nil
}

// Get retrieves a value through the client-side cache. A miss never fetches.
func (r *RueidisAsideCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	val, err := r.client.Get(
		ctx,
		r.clientTTL,
		r.keyPrefix+key,
		func(ctx context.Context, key string) (string, error) {
			return "", ErrCacheMiss
		},
	)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if val == "" {
		return zero, ErrCacheMiss
	}
	return decode[T](val)
}

// GetWithFetch lets rueidisaside run fetchFunc once per key on a miss, even
// under concurrent load.
func (r *RueidisAsideCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	val, err := r.client.Get(
		ctx,
		ttl,
		r.keyPrefix+key,
		func(ctx context.Context, _ string) (string, error) {
			value, err := fetchFunc(ctx, key)
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return string(encoded), nil
		},
	)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get with fetch: %w", err)
	}
	return decode[T](val)
}

// Set stores a value in Redis with TTL.
func (r *RueidisAsideCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	c := r.client.Client()
	cmd := c.B().Set().Key(r.keyPrefix + key).Value(string(encoded)).Ex(ttl).Build()
	if err := c.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key; rueidisaside propagates the invalidation to every
// client-side copy.
func (r *RueidisAsideCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RueidisAsideCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisAsideCache[T]) Health(ctx context.Context) error {
	c := r.client.Client()
	if err := c.Do(ctx, c.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
