package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestJWT(t *testing.T, expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{Subject: "user-1"}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestNewAuthTokenFromJWT(t *testing.T) {
	expiresAt := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	token := NewAuthToken(AccessTokenType, signedTestJWT(t, expiresAt))

	assert.Equal(t, AccessTokenType, token.Type)
	assert.True(t, expiresAt.Equal(token.ExpiresAt))
	assert.False(t, token.Expired())
	assert.True(t, token.ExpiresSoon(10*time.Minute))
	assert.False(t, token.ExpiresSoon(time.Minute))
}

func TestNewAuthTokenOpaqueValue(t *testing.T) {
	token := NewAuthToken(RefreshTokenType, "opaque-refresh-token")

	assert.Equal(t, "opaque-refresh-token", token.Value)
	assert.True(t, token.ExpiresAt.IsZero())
	assert.False(t, token.Expired())
	assert.False(t, token.ExpiresSoon(time.Hour))
}

func TestJWTExpiryWithoutClaim(t *testing.T) {
	expiresAt, err := JWTExpiry(signedTestJWT(t, time.Time{}))
	require.NoError(t, err)
	assert.True(t, expiresAt.IsZero())
}

func TestJWTExpiryInvalid(t *testing.T) {
	_, err := JWTExpiry("not.a.jwt")
	assert.Error(t, err)
	_, err = JWTExpiry("plain")
	assert.Error(t, err)
}

func TestTokenString(t *testing.T) {
	token := AuthToken{
		Value: "secretValue",
		Type:  AccessTokenType,
	}
	tokenString := token.String()
	assert.Contains(t, tokenString, "Value: redacted")
	assert.NotContains(t, tokenString, "secretValue")
	assert.Contains(t, tokenString, string(AccessTokenType))
}

func TestTokenNotExpired(t *testing.T) {
	token := AuthToken{
		ExpiresAt: time.Now().Add(time.Duration(5) * time.Minute),
	}
	assert.False(t, token.Expired())
}

func TestTokenExpired(t *testing.T) {
	token := AuthToken{
		ExpiresAt: time.Now().Add(-time.Duration(5) * time.Minute),
	}
	assert.True(t, token.Expired())
}
