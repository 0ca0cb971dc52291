package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/memberguard/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// initializeRateLimitRedisClient initializes the go-redis client for rate limiting.
// Returns nil if rate limiting is disabled or using memory store.
// Note: rate limiting must use go-redis because ulule/limiter depends on go-redis types.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.RateLimitStoreRedis {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	zap.L().Info("rate limiting Redis client initialized",
		zap.String("addr", cfg.RedisAddr),
		zap.Int("db", cfg.RedisDB),
	)
	return client, nil
}
