package mockbackend

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	issuer := newTokenIssuer([]byte("key"), time.Minute, time.Hour)
	user := User{ID: uuid.New(), Username: "jdoe", SchoolCode: "SCH-001"}

	access, refresh, err := issuer.issuePair(user)
	require.NoError(t, err)

	claims, err := issuer.parse(access, accessTokenType)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "SCH-001", claims.SchoolCode)

	_, err = issuer.parse(refresh, accessTokenType)
	assert.ErrorIs(t, err, errInvalidToken)
	refreshClaims, err := issuer.parse(refresh, refreshTokenType)
	require.NoError(t, err)

	issuer.revoke(refreshClaims)
	_, err = issuer.parse(refresh, refreshTokenType)
	assert.ErrorIs(t, err, errInvalidToken)

	expired, err := issuer.issue(user, accessTokenType, -time.Second)
	require.NoError(t, err)
	_, err = issuer.parse(expired, accessTokenType)
	assert.ErrorIs(t, err, errInvalidToken)

	other := newTokenIssuer([]byte("other-key"), time.Minute, time.Hour)
	_, err = other.parse(access, accessTokenType)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestTokenIssuerRejectsOtherAlgorithms(t *testing.T) {
	issuer := newTokenIssuer([]byte("key"), time.Minute, time.Hour)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TokenType:        accessTokenType,
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.parse(unsigned, accessTokenType)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestUserRepository(t *testing.T) {
	repo := newUserRepository()
	user, err := repo.add(NewUser{Username: "JDoe", Password: "secret-password", SchoolCode: "sch-001"})
	require.NoError(t, err)
	assert.Equal(t, "SCH-001", user.SchoolCode)
	assert.Equal(t, "student", user.Role)
	assert.NotEqual(t, []byte("secret-password"), user.PasswordHash)

	_, err = repo.add(NewUser{Username: "jdoe", Password: "x"})
	assert.ErrorIs(t, err, errDuplicateUsername)

	_, err = repo.authenticate("jdoe", "secret-password", "SCH-001")
	assert.NoError(t, err)
	_, err = repo.authenticate("jdoe", "wrong", "SCH-001")
	assert.ErrorIs(t, err, errAuthenticationFailed)
	_, err = repo.authenticate("jdoe", "secret-password", "SCH-002")
	assert.ErrorIs(t, err, errAuthenticationFailed)
	_, err = repo.authenticate("nobody", "secret-password", "SCH-001")
	assert.ErrorIs(t, err, errAuthenticationFailed)
	assert.Len(t, repo.list(), 1)
}
