package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/credentials"
	"github.com/schoolhub/schoolctl/internal/models"
)

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SchoolCode string `json:"school_code,omitempty"`
}

type LoginResponse struct {
	Access  string             `json:"access"`
	Refresh string             `json:"refresh"`
	User    models.UserProfile `json:"user"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password2,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Role            string `json:"role,omitempty"`
	SchoolCode      string `json:"school_code,omitempty"`
}

// Login exchanges the user credentials for a token pair and stores the session. A wrong
// password comes back as a *ResponseError with status 401 and is not reported to the observer.
func (c *Client) Login(ctx context.Context, login LoginRequest) (LoginResponse, error) {
	err := c.store.Clear(ctx, models.AllCredentialKeys...)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("cannot clear previous session: %w", err)
	}
	req := Request{Method: http.MethodPost, Path: LoginPath, Body: login}
	if login.SchoolCode != "" {
		req.Header = http.Header{}
		req.Header.Set(c.tenantHeader, login.SchoolCode)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return LoginResponse{}, err
	}
	var loginResponse LoginResponse
	err = resp.JSON(&loginResponse)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("cannot decode login response: %w", err)
	}
	if loginResponse.Access == "" {
		return LoginResponse{}, fmt.Errorf("the login response does not contain an access token")
	}
	schoolCode := login.SchoolCode
	if schoolCode == "" {
		schoolCode = loginResponse.User.SchoolCode
	}
	user, err := json.Marshal(loginResponse.User)
	if err != nil {
		return LoginResponse{}, err
	}
	values := map[models.CredentialKey]string{
		models.AccessTokenKey:  loginResponse.Access,
		models.RefreshTokenKey: loginResponse.Refresh,
		models.UserKey:         string(user),
		models.SchoolCodeKey:   schoolCode,
	}
	for _, key := range models.AllCredentialKeys {
		if values[key] == "" {
			continue
		}
		err = c.store.Set(ctx, key, values[key])
		if err != nil {
			return LoginResponse{}, fmt.Errorf("cannot store %s: %w", key, err)
		}
	}
	slog.Info("API CLIENT", "message", "logged in", "username", loginResponse.User.Username, "schoolCode", schoolCode)
	return loginResponse, nil
}

func (c *Client) Register(ctx context.Context, register RegisterRequest) (models.UserProfile, error) {
	req := Request{Method: http.MethodPost, Path: RegisterPath, Body: register}
	if register.SchoolCode != "" {
		req.Header = http.Header{}
		req.Header.Set(c.tenantHeader, register.SchoolCode)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return models.UserProfile{}, err
	}
	var user models.UserProfile
	if len(resp.Body) == 0 {
		return user, nil
	}
	err = resp.JSON(&user)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("cannot decode registration response: %w", err)
	}
	return user, nil
}

// Logout removes the whole session from the store, the backend is not contacted.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Clear(ctx, models.AllCredentialKeys...)
}

func (c *Client) CurrentUser(ctx context.Context) (models.UserProfile, error) {
	raw, err := c.store.Get(ctx, models.UserKey)
	if errors.Is(err, apierrors.ErrCredentialNotFound) {
		return models.UserProfile{}, apierrors.ErrNotAuthenticated
	}
	if err != nil {
		return models.UserProfile{}, err
	}
	var user models.UserProfile
	err = json.Unmarshal([]byte(raw), &user)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("cannot decode the cached user: %w", err)
	}
	return user, nil
}

func (c *Client) IsAuthenticated(ctx context.Context) bool {
	token, err := credentials.GetOptional(ctx, c.store, models.AccessTokenKey)
	return err == nil && token != ""
}

// AccessToken returns the stored access token, apierrors.ErrNotAuthenticated when there is none
func (c *Client) AccessToken(ctx context.Context) (models.AuthToken, error) {
	value, err := c.store.Get(ctx, models.AccessTokenKey)
	if errors.Is(err, apierrors.ErrCredentialNotFound) {
		return models.AuthToken{}, apierrors.ErrNotAuthenticated
	}
	if err != nil {
		return models.AuthToken{}, err
	}
	return models.NewAuthToken(models.AccessTokenType, value), nil
}

// RefreshNow forces a refresh of the access token. It joins a refresh that is already in
// flight. Without a refresh token apierrors.ErrMissingRefreshToken is returned and the
// session is left untouched.
func (c *Client) RefreshNow(ctx context.Context) (models.AuthToken, error) {
	value, err := c.refresh(ctx)
	if err != nil {
		return models.AuthToken{}, err
	}
	return models.NewAuthToken(models.AccessTokenType, value), nil
}
