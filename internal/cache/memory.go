package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/jonboulle/clockwork"
)

var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type memoryOptions struct {
	clock      clockwork.Clock
	maxEntries int
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryOptions)

// WithMemoryClock sets the clock used for expiry.
func WithMemoryClock(clock clockwork.Clock) MemoryOption {
	return func(o *memoryOptions) { o.clock = clock }
}

// WithMaxEntries bounds the cache. When full, expired entries are dropped
// first, then the entry closest to expiry.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) { o.maxEntries = n }
}

// MemoryCache keeps profiles in process. Only one backend replica sees its
// invalidations, so it suits single-node installs.
type MemoryCache[T any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[T]
	clock      clockwork.Clock
	maxEntries int
}

func NewMemoryCache[T any](opts ...MemoryOption) *MemoryCache[T] {
	o := memoryOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryCache[T]{
		entries:    make(map[string]entry[T]),
		clock:      o.clock,
		maxEntries: o.maxEntries,
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	now := m.clock.Now()

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		return e.value, nil
	}
	if ok {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}
	var zero T
	return zero, ErrCacheMiss
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.makeRoomLocked(now)
	}
	m.entries[key] = entry[T]{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryCache[T]) makeRoomLocked(now time.Time) {
	var (
		soonest    string
		soonestAt  time.Time
		anyExpired bool
	)
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			anyExpired = true
			continue
		}
		if soonest == "" || e.expiresAt.Before(soonestAt) {
			soonest, soonestAt = k, e.expiresAt
		}
	}
	if !anyExpired && soonest != "" {
		delete(m.entries, soonest)
	}
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Close drops every entry.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]entry[T])
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[T]) Health(context.Context) error {
	return nil
}

func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context, key string) (T, error),
) (T, error) {
	return fetchThrough[T](ctx, m, key, ttl, fetch)
}

// Len counts unexpired entries.
func (m *MemoryCache[T]) Len() int {
	now := m.clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
