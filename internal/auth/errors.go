package auth

import (
	"errors"

	"github.com/go-authgate/memberguard/internal/core"
)

var (
	ErrInvalidCredentials = core.ErrInvalidCredentials

	// HTTP API errors
	ErrHTTPAPIConnection  = errors.New("failed to connect to authentication API")
	ErrHTTPAPIAuthFailed  = errors.New("authentication API rejected credentials")
	ErrHTTPAPIInvalidResp = errors.New("invalid response from authentication API")
)
