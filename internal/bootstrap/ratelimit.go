package bootstrap

import (
	"fmt"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	login   gin.HandlerFunc
	pairing gin.HandlerFunc
	approve gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration
// Accepts an optional go-redis client
func setupRateLimiting(
	cfg *config.Config,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOpMiddleware := func(c *gin.Context) { c.Next() }
		return rateLimitMiddlewares{
			login:   noOpMiddleware,
			pairing: noOpMiddleware,
			approve: noOpMiddleware,
		}, nil
	}
	return createRateLimiters(cfg, redisClient)
}

// createRateLimiters creates rate limiting middlewares for all endpoints.
// Sign-in is bucketed per client IP; the pairing routes run behind
// RequireSession and are bucketed per member.
func createRateLimiters(
	cfg *config.Config,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	zap.L().Info("rate limiting enabled", zap.String("store", cfg.RateLimitStore))

	createLimiter := func(
		requestsPerMinute int,
		prefix string,
		keyGetter func(*gin.Context) string,
	) (gin.HandlerFunc, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			Prefix:            prefix,
			KeyGetter:         keyGetter,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter %s: %w", prefix, err)
		}
		return limiter, nil
	}

	var (
		limiters rateLimitMiddlewares
		err      error
	)
	if limiters.login, err = createLimiter(cfg.LoginRateLimit, "memberguard:rl:login", nil); err != nil {
		return limiters, err
	}
	if limiters.pairing, err = createLimiter(
		cfg.PairingRateLimit, "memberguard:rl:pairing", middleware.SessionOrIPKey,
	); err != nil {
		return limiters, err
	}
	if limiters.approve, err = createLimiter(
		cfg.ApproveRateLimit, "memberguard:rl:approve", middleware.SessionOrIPKey,
	); err != nil {
		return limiters, err
	}
	return limiters, nil
}
