package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/credentials"
	"github.com/schoolhub/schoolctl/internal/models"
	"github.com/schoolhub/schoolctl/internal/utils"
)

const refreshGroupKey string = "refresh"

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refresh obtains a new access token. Concurrent callers share a single call to the backend
// and all of them receive its outcome. The shared call is detached from the context of the
// caller that started it so that one cancelled request does not fail the others.
func (c *Client) refresh(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan(refreshGroupKey, func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken, err := credentials.GetOptional(ctx, c.store, models.RefreshTokenKey)
	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if refreshToken == "" {
		refreshTotal.WithLabelValues("missing").Inc()
		return "", apierrors.ErrMissingRefreshToken
	}
	slog.Debug("API CLIENT", "message", "refreshing access token")
	accessToken, err := c.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return "", c.endSession(ctx, err)
	}
	refreshTotal.WithLabelValues("success").Inc()
	return accessToken, nil
}

// exchangeRefreshToken calls the refresh endpoint directly, without the bearer or tenant
// headers and outside of the failure pipeline, and stores the new tokens.
func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.refreshPath, nil), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	requestID := utils.NewRequestID(c.idGenerator)
	if requestID != "" {
		req.Header.Set(utils.HeaderRequestID, requestID)
	}
	resp, err := c.roundTrip(req, requestID)
	if err != nil {
		return "", err
	}
	var payload refreshResponse
	err = resp.JSON(&payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apierrors.ErrInvalidRefreshResponse, err)
	}
	if payload.Access == "" {
		return "", apierrors.ErrInvalidRefreshResponse
	}
	err = c.store.Set(ctx, models.AccessTokenKey, payload.Access)
	if err != nil {
		return "", err
	}
	if payload.Refresh != "" && payload.Refresh != refreshToken {
		err = c.store.Set(ctx, models.RefreshTokenKey, payload.Refresh)
		if err != nil {
			return "", err
		}
		slog.Debug("API CLIENT", "message", "refresh token was rotated", "requestID", requestID)
	}
	slog.Debug(
		"API CLIENT",
		"message",
		"access token refreshed",
		"token",
		models.NewAuthToken(models.AccessTokenType, payload.Access),
		"requestID",
		requestID,
	)
	return payload.Access, nil
}

// endSession clears every credential and sends the user to the login route, the returned
// error wraps both apierrors.ErrRefreshFailed and the cause.
func (c *Client) endSession(ctx context.Context, cause error) error {
	slog.Info("API CLIENT", "message", "refreshing the access token failed, ending the session", "error", cause)
	err := c.store.Clear(ctx, models.AllCredentialKeys...)
	if err != nil {
		slog.Error("API CLIENT", "message", "clearing credentials failed", "error", err)
		cause = errors.Join(cause, err)
	}
	c.redirector.RedirectToLogin(ctx, c.loginRoute)
	return fmt.Errorf("%w: %w", apierrors.ErrRefreshFailed, cause)
}
