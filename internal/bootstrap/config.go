package bootstrap

import (
	"errors"
	"fmt"

	"github.com/go-authgate/memberguard/internal/config"

	"go.uber.org/zap"
)

// validateAllConfiguration runs the checks that span more than one setting.
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateAuthConfig(cfg); err != nil {
		return fmt.Errorf("invalid authentication configuration: %w", err)
	}
	if err := validatePairingConfig(cfg); err != nil {
		return fmt.Errorf("invalid pairing configuration: %w", err)
	}
	return nil
}

func validateAuthConfig(cfg *config.Config) error {
	switch cfg.AuthMode {
	case config.AuthModeHTTPAPI:
		if cfg.HTTPAPIURL == "" {
			return fmt.Errorf("HTTP_API_URL is required when AUTH_MODE=%s", config.AuthModeHTTPAPI)
		}
	case config.AuthModeLocal:
	default:
		return fmt.Errorf("invalid AUTH_MODE: %s (must be: local, http_api)", cfg.AuthMode)
	}
	return nil
}

// validatePairingConfig requires a running expiry sweep. A sweep slower than
// the code lifetime leaves stale codes pending in listings for a while; the
// approve path still rejects them, so that is only logged.
func validatePairingConfig(cfg *config.Config) error {
	if cfg.PairingSweepInterval <= 0 {
		return errors.New("PAIRING_SWEEP_INTERVAL must be a positive duration")
	}
	if cfg.PairingSweepInterval > cfg.PairingCodeExpiration {
		zap.L().Warn("pairing sweep runs less often than codes expire",
			zap.Duration("sweep_interval", cfg.PairingSweepInterval),
			zap.Duration("code_expiration", cfg.PairingCodeExpiration),
		)
	}
	return nil
}
