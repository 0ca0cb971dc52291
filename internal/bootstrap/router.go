package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/metrics"
	"github.com/go-authgate/memberguard/internal/middleware"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/util"

	httpclient "github.com/appleboy/go-httpclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// healthChecker is anything /health probes.
type healthChecker interface {
	Health(ctx context.Context) error
}

// storeHealth adapts the store's context-free Health to healthChecker.
type storeHealth struct {
	check func() error
}

func (s storeHealth) Health(context.Context) error { return s.check() }

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	database healthChecker,
	userCache core.Cache[models.User],
	h handlerSet,
	s serviceSet,
	recorder core.Recorder,
	rateLimiters rateLimitMiddlewares,
) *gin.Engine {
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())

	r.GET("/health", createHealthCheckHandler(database, userCache))
	setupMetricsEndpoint(r, cfg)
	setupAllRoutes(r, cfg, h, s, rateLimiters)

	logServerStartup(cfg)
	return r
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		zap.L().Info("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		zap.L().Info("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		zap.L().Info("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// serviceAuthConfig is the key every member client must present.
func serviceAuthConfig(cfg *config.Config) *httpclient.AuthConfig {
	authConfig := httpclient.NewAuthConfig(cfg.ServiceAuthMode, cfg.ServiceAuthSecret)
	if cfg.ServiceAuthHeader != "" {
		authConfig.HeaderName = cfg.ServiceAuthHeader
	}
	return authConfig
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	s serviceSet,
	rateLimiters rateLimitMiddlewares,
) {
	api := r.Group("")
	api.Use(middleware.RequireAPIKey(serviceAuthConfig(cfg)))

	requireSession := middleware.RequireSession(s.identity, s.user)

	// Identity provider
	api.POST("/auth/v1/token", rateLimiters.login, h.identity.Token)
	identity := api.Group("/auth/v1")
	identity.Use(requireSession)
	{
		identity.GET("/session", h.identity.Session)
		identity.POST("/logout", h.identity.Logout)
		identity.PUT("/user", h.identity.UpdateUser)
	}

	// Member data
	rest := api.Group("/rest/v1")
	rest.Use(requireSession)
	{
		rest.GET("/profile", h.identity.Profile)
		rest.GET("/devices", h.device.GetBinding)
		rest.GET("/devices/all", h.device.ListBindings)
		rest.GET("/device_pairing", h.pairing.Get)
	}

	// Device and pairing procedures
	rpc := api.Group("/rpc")
	rpc.Use(requireSession)
	{
		rpc.POST("/register_device", h.device.Register)
		rpc.POST("/create_pairing_code", rateLimiters.pairing, h.pairing.Create)
		rpc.POST("/approve_pairing", rateLimiters.approve, h.pairing.Approve)
		rpc.POST("/reject_pairing", rateLimiters.approve, h.pairing.Reject)
	}

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(requireSession, middleware.RequireAdmin())
	{
		admin.POST("/devices/:id/revoke", h.device.AdminRevoke)
	}
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(database, userCache healthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "healthy", "database": "connected", "cache": "connected"}

		if err := database.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "disconnected"
		}
		if err := userCache.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["cache"] = "disconnected"
		}
		c.JSON(status, body)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.IsProduction()]
	gin.SetMode(mode)
	zap.L().Info("gin mode", zap.String("mode", mode))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	zap.L().Info("memberguard server starting",
		zap.String("addr", cfg.ServerAddr),
		zap.String("auth_mode", cfg.AuthMode),
		zap.Int("max_devices_per_user", cfg.MaxDevicesPerUser),
		zap.Duration("pairing_code_expiration", cfg.PairingCodeExpiration),
		zap.String("service_auth_mode", cfg.ServiceAuthMode),
	)
}
