package bootstrap

import (
	"fmt"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	zap.L().Info("database ready", zap.String("driver", cfg.DatabaseDriver))
	return db, nil
}
