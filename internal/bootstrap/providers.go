package bootstrap

import (
	"github.com/go-authgate/memberguard/internal/auth"
	"github.com/go-authgate/memberguard/internal/client"
	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"

	"go.uber.org/zap"
)

// initializeHTTPAPIAuthProvider creates HTTP API auth provider when configured.
// The nil interface is returned otherwise so services can test for it.
func initializeHTTPAPIAuthProvider(cfg *config.Config) core.AuthProvider {
	switch cfg.AuthMode {
	case config.AuthModeHTTPAPI:
		authRetryClient, err := client.CreateRetryClient(client.RetryConfig{
			AuthMode:           cfg.HTTPAPIAuthMode,
			AuthSecret:         cfg.HTTPAPIAuthSecret,
			AuthHeader:         cfg.HTTPAPIAuthHeader,
			Timeout:            cfg.HTTPAPITimeout,
			InsecureSkipVerify: cfg.HTTPAPIInsecureSkipVerify,
			MaxRetries:         cfg.HTTPAPIMaxRetries,
			RetryDelay:         cfg.HTTPAPIRetryDelay,
			MaxRetryDelay:      cfg.HTTPAPIMaxRetryDelay,
		})
		if err != nil {
			zap.L().Fatal("failed to create HTTP API auth client", zap.Error(err))
		}
		zap.L().Info("HTTP API authentication enabled", zap.String("url", cfg.HTTPAPIURL))
		return auth.NewHTTPAPIAuthProvider(cfg, authRetryClient)
	default:
		return nil
	}
}
