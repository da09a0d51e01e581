package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AuthToken is a struct used to work with the access and refresh tokens issued by the school backend
type AuthToken struct {
	Value     string
	ExpiresAt time.Time
	Type      AuthTokenType
}

// NewAuthToken wraps a raw token value. When the value is a JWT the expiry is taken from
// its "exp" claim, the signature is not verified since only the backend can do that.
func NewAuthToken(tokenType AuthTokenType, value string) AuthToken {
	token := AuthToken{Type: tokenType, Value: value}
	expiresAt, err := JWTExpiry(value)
	if err == nil {
		token.ExpiresAt = expiresAt
	}
	return token
}

// JWTExpiry reads the expiration claim of a JWT without verifying its signature.
func JWTExpiry(value string) (time.Time, error) {
	if strings.Count(value, ".") != 2 {
		return time.Time{}, fmt.Errorf("token is not a JWT")
	}
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(value, &claims)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time.UTC(), nil
}

// String immplements the Stringer interface for printing the token in logs
func (t AuthToken) String() string {
	return fmt.Sprintf(
		"%s<Value: redacted, ExpiresAt: %s>",
		t.Type,
		t.ExpiresAt,
	)
}

// Expired returns true when the token has a known expiry that lies in the past
func (t AuthToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().UTC().After(t.ExpiresAt)
}

// ExpiresSoon returns true when the token has a known expiry closer than the margin
func (t AuthToken) ExpiresSoon(margin time.Duration) bool {
	return !t.ExpiresAt.IsZero() && time.Now().UTC().Add(margin).After(t.ExpiresAt)
}

func (t AuthToken) Empty() bool {
	return t.Value == ""
}
