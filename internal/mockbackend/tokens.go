package mockbackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	accessTokenType  string = "access"
	refreshTokenType string = "refresh"
)

var errInvalidToken = fmt.Errorf("token is invalid or expired")

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType  string `json:"token_type"`
	Username   string `json:"username,omitempty"`
	SchoolCode string `json:"school_code,omitempty"`
}

// tokenIssuer signs HS256 tokens and remembers refresh tokens that were rotated out
type tokenIssuer struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	lock       sync.Mutex
	revoked    map[string]time.Time
}

func (t *tokenIssuer) issue(user User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:  tokenType,
		Username:   user.Username,
		SchoolCode: user.SchoolCode,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
}

func (t *tokenIssuer) issuePair(user User) (string, string, error) {
	access, err := t.issue(user, accessTokenType, t.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := t.issue(user, refreshTokenType, t.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (t *tokenIssuer) parse(value string, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(*jwt.Token) (interface{}, error) { return t.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected a %s token", errInvalidToken, tokenType)
	}
	if t.isRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: the token was revoked", errInvalidToken)
	}
	return claims, nil
}

func (t *tokenIssuer) revoke(claims *tokenClaims) {
	t.lock.Lock()
	defer t.lock.Unlock()
	now := time.Now()
	for id, expiresAt := range t.revoked {
		if expiresAt.Before(now) {
			delete(t.revoked, id)
		}
	}
	expiresAt := now.Add(t.refreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	t.revoked[claims.ID] = expiresAt
}

func (t *tokenIssuer) isRevoked(id string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	_, found := t.revoked[id]
	return found
}

func newTokenIssuer(signingKey []byte, accessTTL, refreshTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    map[string]time.Time{},
	}
}
