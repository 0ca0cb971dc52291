package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenGeneration = errors.New("failed to sign session token")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrExpiredToken    = errors.New("session token expired")
)

var _ core.TokenIssuer = (*LocalIssuer)(nil)

// LocalIssuer signs and validates member session tokens with a shared HS256
// secret. The session id travels as the jti claim so the backend can revoke
// a single session.
type LocalIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewLocalIssuer creates a new local session token issuer.
func NewLocalIssuer(secret, issuer string) *LocalIssuer {
	return &LocalIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token for userID bound to sessionID.
func (p *LocalIssuer) Issue(
	userID, sessionID string,
	expiresAt time.Time,
) (*core.SessionToken, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(p.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &core.SessionToken{
		TokenString: tokenString,
		SessionID:   sessionID,
		UserID:      userID,
		ExpiresAt:   expiresAt,
	}, nil
}

// Validate verifies signature and expiry and returns the session claims.
func (p *LocalIssuer) Validate(tokenString string) (*core.SessionClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return p.secret, nil
		},
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &core.SessionClaims{
		SessionID: claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Name returns provider name for logging
func (p *LocalIssuer) Name() string {
	return "local"
}
