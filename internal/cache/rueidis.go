package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/redis/rueidis"
)

var _ core.Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RueidisCache stores JSON-encoded profiles in Redis so every backend
// replica sees the same entries and invalidations. Keys are namespaced by
// keyPrefix.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRueidisCache creates a new Redis cache instance using rueidis.
func NewRueidisCache[T any](
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
) (*RueidisCache[T], error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RueidisCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

func (r *RueidisCache[T]) key(k string) string {
	return r.keyPrefix + k
}

func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	resp := r.client.Do(ctx, r.client.B().Get().Key(r.key(key)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	str, err := resp.ToString()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return decode[T](str)
}

func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	cmd := r.client.B().Set().
		Key(r.key(key)).
		Value(string(encoded)).
		Ex(ttl).
		Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete drops a profile after its member row changes.
func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(r.key(key)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health pings Redis for the /health endpoint.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RueidisCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context, key string) (T, error),
) (T, error) {
	return fetchThrough[T](ctx, r, key, ttl, fetch)
}

func decode[T any](raw string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}
