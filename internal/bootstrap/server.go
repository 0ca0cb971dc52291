package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/metrics"
	"github.com/go-authgate/memberguard/internal/services"
	"github.com/go-authgate/memberguard/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, timeout time.Duration) {
	m.AddShutdownJob(func() error {
		zap.L().Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("server forced to shutdown", zap.Error(err))
			return err
		}

		zap.L().Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			zap.L().Error("error closing Redis client", zap.Error(err))
			return err
		}
		zap.L().Info("Redis connection closed")
		return nil
	})
}

// addCacheShutdownJob closes the user cache on shutdown
func addCacheShutdownJob(m *graceful.Manager, closer func() error) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			zap.L().Error("error closing user cache", zap.Error(err))
		} else {
			zap.L().Info("user cache closed")
		}
		return nil
	})
}

// addDatabaseShutdownJob closes the database pool on shutdown
func addDatabaseShutdownJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			zap.L().Error("error closing database", zap.Error(err))
			return err
		}
		zap.L().Info("database closed")
		return nil
	})
}

// addPeriodicJob runs fn immediately and then every interval until shutdown.
func addPeriodicJob(m *graceful.Manager, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// sweepOnce expires stale pairing codes and drops expired sessions.
func sweepOnce(pairings *services.PairingService, db *store.Store) {
	if n, err := pairings.SweepExpired(); err != nil {
		zap.L().Error("failed to expire stale pairing codes", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("expired stale pairing codes", zap.Int64("count", n))
	}
	if err := db.DeleteExpiredSessions(); err != nil {
		zap.L().Error("failed to delete expired sessions", zap.Error(err))
	}
}

// addPairingSweepJob adds the periodic pairing expiry sweep
func addPairingSweepJob(
	m *graceful.Manager,
	cfg *config.Config,
	pairings *services.PairingService,
	db *store.Store,
) {
	addPeriodicJob(m, cfg.PairingSweepInterval, func() {
		sweepOnce(pairings, db)
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db core.MetricsStore,
	recorder core.Recorder,
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return
	}

	updater := metrics.NewGaugeUpdater(db, recorder)
	addPeriodicJob(m, cfg.MetricsGaugeUpdateInterval, updater.Update)
}
