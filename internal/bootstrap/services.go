package bootstrap

import (
	"github.com/go-authgate/memberguard/internal/auth"
	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/services"
	"github.com/go-authgate/memberguard/internal/store"
	"github.com/go-authgate/memberguard/internal/token"
)

// serviceSet holds the business services shared by handlers and jobs
type serviceSet struct {
	user     *services.UserService
	identity *services.IdentityService
	device   *services.DeviceService
	pairing  *services.PairingService
}

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	userCache core.Cache[models.User],
	recorder core.Recorder,
) serviceSet {
	userService := services.NewUserService(db, userCache, cfg.UserCacheTTL)

	identityService := services.NewIdentityService(
		db,
		userService,
		auth.NewLocalAuthProvider(db),
		initializeHTTPAPIAuthProvider(cfg),
		cfg.AuthMode,
		token.NewLocalIssuer(cfg.JWTSecret, cfg.BaseURL),
		cfg.SessionTTL,
		recorder,
	)

	return serviceSet{
		user:     userService,
		identity: identityService,
		device:   services.NewDeviceService(db, cfg.MaxDevicesPerUser, recorder),
		pairing:  services.NewPairingService(db, cfg.PairingCodeExpiration, recorder),
	}
}
