package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Logger *zap.Logger

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	UserCache            core.Cache[models.User]
	RateLimitRedisClient *redis.Client

	// Business and HTTP layers
	Services     serviceSet
	HandlerSet   handlerSet
	RateLimiters rateLimitMiddlewares
	Router       *gin.Engine
	Server       *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	logger, err := initializeLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app := &Application{Config: cfg, Logger: logger}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.Services = initializeServices(cfg, app.DB, app.UserCache, app.MetricsRecorder)

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown(ctx)
	return nil
}

// initializeInfrastructure sets up database, metrics, cache, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config)

	app.UserCache, err = initializeUserCache(ctx, app.Config)
	if err != nil {
		return err
	}

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	return err
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	var err error
	app.RateLimiters, err = setupRateLimiting(app.Config, app.RateLimitRedisClient)
	if err != nil {
		return err
	}

	app.HandlerSet = initializeHandlers(app.Services)
	app.Router = setupRouter(
		app.Config,
		storeHealth{check: app.DB.Health},
		app.UserCache,
		app.HandlerSet,
		app.Services,
		app.MetricsRecorder,
		app.RateLimiters,
	)
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown(ctx context.Context) {
	m := graceful.NewManager(graceful.WithContext(ctx))

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server, app.Config.ServerShutdownTimeout)
	addPairingSweepJob(m, app.Config, app.Services.pairing, app.DB)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCacheShutdownJob(m, app.UserCache.Close)
	addDatabaseShutdownJob(m, app.DB)

	<-m.Done()
}
