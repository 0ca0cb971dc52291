package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/memberguard/internal/cache"
	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/metrics"
	"github.com/go-authgate/memberguard/internal/models"

	"go.uber.org/zap"
)

const userCacheKeyPrefix = "memberguard:users:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		zap.L().Info("Prometheus metrics initialized")
	} else {
		zap.L().Info("metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeUserCache initializes the member profile cache (always enabled,
// defaults to memory)
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[models.User], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.UserCacheType {
	case config.UserCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[models.User](
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			userCacheKeyPrefix,
			cfg.UserCacheClientTTL,
			cfg.UserCacheSizePerConn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside user cache: %w", err)
		}
		if err := c.Health(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis-aside user cache unreachable: %w", err)
		}
		zap.L().Info("user cache: redis-aside",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.Duration("client_ttl", cfg.UserCacheClientTTL),
			zap.Int("cache_size_per_conn_mb", cfg.UserCacheSizePerConn),
		)
		return c, nil

	case config.UserCacheTypeRedis:
		c, err := cache.NewRueidisCache[models.User](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			userCacheKeyPrefix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis user cache: %w", err)
		}
		zap.L().Info("user cache: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return c, nil

	default: // memory
		zap.L().Info("user cache: memory (single instance only)")
		return cache.NewMemoryCache[models.User](), nil
	}
}
