package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing"

func TestLocalIssuer_IssueAndValidate(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "http://localhost:8080")
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

	tok, err := issuer.Issue("user123", "session456", expiresAt)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.TokenString)
	assert.Equal(t, "user123", tok.UserID)
	assert.Equal(t, "session456", tok.SessionID)

	claims, err := issuer.Validate(tok.TokenString)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.UserID)
	assert.Equal(t, "session456", claims.SessionID)
	assert.True(t, expiresAt.Equal(claims.ExpiresAt))
}

func TestLocalIssuer_ValidateGarbage(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "")

	_, err := issuer.Validate("invalid.token.string")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalIssuer_ValidateWrongSecret(t *testing.T) {
	tok, err := NewLocalIssuer("secret-a", "").Issue("u", "s", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = NewLocalIssuer("secret-b", "").Validate(tok.TokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalIssuer_ValidateExpired(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "")
	tok, err := issuer.Issue("u", "s", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = issuer.Validate(tok.TokenString)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestLocalIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u",
		ID:        "s",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalIssuer_RequiresSessionID(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "")
	tok, err := issuer.Issue("u", "", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = issuer.Validate(tok.TokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalIssuer_TamperedPayload(t *testing.T) {
	issuer := NewLocalIssuer(testSecret, "")
	tok, err := issuer.Issue("u", "s", time.Now().Add(time.Hour))
	require.NoError(t, err)

	parts := strings.Split(tok.TokenString, ".")
	require.Len(t, parts, 3)
	parts[1] = parts[1] + "x"

	_, err = issuer.Validate(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
