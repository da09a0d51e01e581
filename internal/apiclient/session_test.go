package apiclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresSession(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	backend.validAccess = "access-1"
	backend.validRefresh = "refresh-1"
	client, store, observer, _ := newTestClient(t, backend)
	require.NoError(t, store.Set(ctx, models.AccessTokenKey, "old-access"))

	resp, err := client.Login(ctx, LoginRequest{Username: "jdoe", Password: "secret", SchoolCode: testSchoolCode})
	require.NoError(t, err)
	assert.Equal(t, "access-1", resp.Access)
	assert.Equal(t, "Jane Doe", resp.User.FullName())

	for key, expected := range map[models.CredentialKey]string{
		models.AccessTokenKey:  "access-1",
		models.RefreshTokenKey: "refresh-1",
		models.SchoolCodeKey:   testSchoolCode,
	} {
		value, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, expected, value)
	}
	user, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.NumericID(7), user.ID)
	assert.Equal(t, false, user.Extra["is_staff"])
	assert.True(t, client.IsAuthenticated(ctx))
	assert.Empty(t, observer.all())

	headers := backend.recordedHeaders()
	require.Len(t, headers, 1)
	assert.Equal(t, testSchoolCode, headers[0].Get(DefaultTenantHeader))
	assert.Empty(t, headers[0].Get("Authorization"))
}

func TestLoginWrongPasswordIsSilent(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	client, _, observer, redirector := newTestClient(t, backend)

	_, err := client.Login(ctx, LoginRequest{Username: "jdoe", Password: "nope", SchoolCode: testSchoolCode})

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)
	assert.Equal(t, "No active account found with the given credentials", respErr.Payload()["detail"])
	assert.Equal(t, "No active account found with the given credentials", ExtractMessage(respErr.Body))
	assert.Empty(t, observer.all())
	assert.Equal(t, int32(0), redirector.calls.Load())
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.False(t, client.IsAuthenticated(ctx))
}

func TestRegisterFieldErrors(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	client, _, observer, _ := newTestClient(t, backend)

	user, err := client.Register(ctx, RegisterRequest{Username: "new-student", Email: "s@example.org", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "new-student", user.Username)

	_, err = client.Register(ctx, RegisterRequest{Username: "taken", Email: "bad", Password: "pw"})
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	errs := observer.all()
	require.Len(t, errs, 1)
	assert.Equal(t, "Validation error: email: Enter a valid email address.; username: A user with that username already exists.", errs[0].Message)
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	client, store, _, _ := newTestClient(t, backend)
	seedSession(t, store, "access-1", "refresh-1")

	require.NoError(t, client.Logout(ctx))

	assert.Equal(t, 0, store.Len())
	_, err := client.CurrentUser(ctx)
	assert.ErrorIs(t, err, apierrors.ErrNotAuthenticated)
	_, err = client.AccessToken(ctx)
	assert.ErrorIs(t, err, apierrors.ErrNotAuthenticated)
}

func TestRefreshNow(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	fresh := signedToken(t, "jdoe", 10*time.Minute)
	backend.validRefresh = "refresh-1"
	backend.nextAccess = fresh
	client, store, _, _ := newTestClient(t, backend)
	seedSession(t, store, "access-1", "refresh-1")

	token, err := client.RefreshNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, token.Value)
	assert.Equal(t, models.AccessTokenType, token.Type)
	assert.False(t, token.ExpiresSoon(time.Minute))
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
}

func TestRefreshNowWithoutRefreshToken(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	client, store, _, redirector := newTestClient(t, backend)
	seedSession(t, store, "access-1", "")

	_, err := client.RefreshNow(ctx)

	assert.ErrorIs(t, err, apierrors.ErrMissingRefreshToken)
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.Equal(t, int32(0), redirector.calls.Load())
	assert.True(t, client.IsAuthenticated(ctx))
}

func TestRefreshWithoutAccessInResponse(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	backend.validRefresh = "refresh-1"
	client, store, _, redirector := newTestClient(t, backend)
	seedSession(t, store, "access-1", "refresh-1")

	_, err := client.RefreshNow(ctx)

	assert.ErrorIs(t, err, apierrors.ErrRefreshFailed)
	assert.ErrorIs(t, err, apierrors.ErrInvalidRefreshResponse)
	assert.Equal(t, int32(1), redirector.calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	expired := signedToken(t, "jdoe", -time.Minute)
	fresh := signedToken(t, "jdoe", 10*time.Minute)
	backend.validRefresh = "refresh-1"
	backend.nextAccess = fresh
	client, store, _, _ := newTestClient(t, backend)

	_, err := client.TokenSource(ctx).Token()
	assert.ErrorIs(t, err, apierrors.ErrNotAuthenticated)

	seedSession(t, store, expired, "refresh-1")
	token, err := client.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, fresh, token.AccessToken)
	assert.True(t, token.Valid())
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
}
