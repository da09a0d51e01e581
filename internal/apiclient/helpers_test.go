package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/schoolhub/schoolctl/internal/credentials"
	"github.com/schoolhub/schoolctl/internal/models"
	"github.com/stretchr/testify/require"
)

const testSchoolCode string = "SCH-001"

type recorder struct {
	lock   sync.Mutex
	errors []NormalizedError
}

func (r *recorder) OnError(n NormalizedError) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.errors = append(r.errors, n)
}

func (r *recorder) all() []NormalizedError {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]NormalizedError{}, r.errors...)
}

func signedToken(t *testing.T, subject string, expiresIn time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

// testBackend mimics the auth endpoints of the school backend and serves every other path
// as a protected resource
type testBackend struct {
	server *httptest.Server

	lock           sync.Mutex
	validAccess    string
	validRefresh   string
	nextAccess     string
	rotateRefresh  string
	refreshStatus  int
	refreshDelay   time.Duration
	registerStatus int
	resource       http.HandlerFunc
	headers        []http.Header

	refreshCalls  atomic.Int32
	resourceCalls atomic.Int32
}

func newTestBackend(t *testing.T) *testBackend {
	b := &testBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", b.handleRefresh)
	mux.HandleFunc("/api/v2/token/renew/", b.handleRefresh)
	mux.HandleFunc("/api/auth/login/", b.handleLogin)
	mux.HandleFunc("/api/auth/users/register/", b.handleRegister)
	mux.HandleFunc("/api/", b.handleResource)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *testBackend) baseURL() string {
	return b.server.URL + "/api"
}

func (b *testBackend) recordedHeaders() []http.Header {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]http.Header{}, b.headers...)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *testBackend) handleResource(w http.ResponseWriter, r *http.Request) {
	b.resourceCalls.Add(1)
	b.lock.Lock()
	b.headers = append(b.headers, r.Header.Clone())
	valid := b.validAccess
	resource := b.resource
	b.lock.Unlock()
	if resource != nil {
		resource(w, r)
		return
	}
	if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": 1, "amount": "120.00"}}})
}

func (b *testBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	b.lock.Lock()
	b.headers = append(b.headers, r.Header.Clone())
	delay := b.refreshDelay
	b.lock.Unlock()
	time.Sleep(delay)

	var body refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.refreshStatus != 0 {
		writeJSON(w, b.refreshStatus, map[string]any{"detail": "Token is invalid or expired"})
		return
	}
	if body.Refresh == "" || body.Refresh != b.validRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired"})
		return
	}
	b.validAccess = b.nextAccess
	response := map[string]any{"access": b.nextAccess}
	if b.rotateRefresh != "" {
		b.validRefresh = b.rotateRefresh
		response["refresh"] = b.rotateRefresh
	}
	writeJSON(w, http.StatusOK, response)
}

func (b *testBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	b.headers = append(b.headers, r.Header.Clone())
	b.lock.Unlock()
	var body LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	switch {
	case body.Username == "" || body.Password == "":
		writeJSON(w, http.StatusBadRequest, map[string]any{"username": []string{"This field is required."}})
	case body.Username == "jdoe" && body.Password == "secret":
		b.lock.Lock()
		defer b.lock.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access":  b.validAccess,
			"refresh": b.validRefresh,
			"user": map[string]any{
				"id":          7,
				"username":    "jdoe",
				"first_name":  "Jane",
				"last_name":   "Doe",
				"school_code": strings.ToUpper(body.SchoolCode),
				"is_staff":    false,
			},
		})
	default:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
	}
}

func (b *testBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body RegisterRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.lock.Lock()
	status := b.registerStatus
	b.lock.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]any{"detail": "Authentication credentials were not provided."})
		return
	}
	if body.Username == "taken" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"username": []string{"A user with that username already exists."},
			"email":    []string{"Enter a valid email address."},
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": "u-1", "username": body.Username, "email": body.Email})
}

// vanishingRefreshStore hands out the refresh token once and then loses the whole session,
// like a concurrent failed refresh clearing the store right after the token was read
type vanishingRefreshStore struct {
	*credentials.MemoryStore
	refreshReads atomic.Int32
}

func (s *vanishingRefreshStore) Get(ctx context.Context, key models.CredentialKey) (string, error) {
	value, err := s.MemoryStore.Get(ctx, key)
	if err == nil && key == models.RefreshTokenKey && s.refreshReads.Add(1) == 1 {
		return value, s.MemoryStore.Clear(ctx, models.AllCredentialKeys...)
	}
	return value, err
}

type testRedirector struct {
	calls atomic.Int32
	// onRedirect runs inside RedirectToLogin, used to inspect the store at that moment
	onRedirect func()
}

func newTestClient(t *testing.T, backend *testBackend, options ...ClientOption) (*Client, *credentials.MemoryStore, *recorder, *testRedirector) {
	store := credentials.NewMemoryStore()
	observer := &recorder{}
	redirector := &testRedirector{}
	defaults := []ClientOption{
		WithBaseURL(backend.baseURL()),
		WithCredentialStore(store),
		WithErrorObserver(observer),
		WithLoginRedirector(LoginRedirectorFunc(func(ctx context.Context, route string) {
			redirector.calls.Add(1)
			if redirector.onRedirect != nil {
				redirector.onRedirect()
			}
		})),
	}
	client, err := NewClient(append(defaults, options...)...)
	require.NoError(t, err)
	return client, store, observer, redirector
}

func seedSession(t *testing.T, store credentials.Store, access, refresh string) {
	ctx := context.Background()
	if access != "" {
		require.NoError(t, store.Set(ctx, models.AccessTokenKey, access))
	}
	if refresh != "" {
		require.NoError(t, store.Set(ctx, models.RefreshTokenKey, refresh))
	}
	require.NoError(t, store.Set(ctx, models.UserKey, `{"id":7,"username":"jdoe"}`))
	require.NoError(t, store.Set(ctx, models.SchoolCodeKey, testSchoolCode))
}
