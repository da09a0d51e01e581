// Package apiclient is the single entry point used to talk to the school management backend.
// It attaches the stored credentials and tenant to every request, transparently refreshes an
// expired access token once per request and reports failures to an ErrorObserver.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/credentials"
	"github.com/schoolhub/schoolctl/internal/models"
	"github.com/schoolhub/schoolctl/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	LoginPath    string = "/auth/login/"
	RefreshPath  string = "/auth/token/refresh/"
	RegisterPath string = "/auth/users/register/"
)

const DefaultTenantHeader string = "X-School-Code"
const DefaultLoginRoute string = "/login"

var DefaultAuthEndpoints []string = []string{LoginPath, RefreshPath, RegisterPath}

type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	store         credentials.Store
	observer      ErrorObserver
	redirector    LoginRedirector
	limiter       *rate.Limiter
	idGenerator   models.IDGenerator
	tenantHeader  string
	loginRoute    string
	authEndpoints []string
	refreshPath   string
	refreshGroup  singleflight.Group
}

// Do sends the request and returns the successful response. Every failure is returned as an
// error: *ResponseError for non-2xx answers, the transport error when nothing was received.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	body, err := req.encodeBody()
	if err != nil {
		c.notify(ctx, err)
		return nil, err
	}
	a := &attempt{request: req, body: body}
	return c.execute(ctx, a)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) execute(ctx context.Context, a *attempt) (*Response, error) {
	resp, err := c.send(ctx, a)
	if err == nil {
		return resp, nil
	}
	return c.handleFailure(ctx, a, err)
}

func (c *Client) handleFailure(ctx context.Context, a *attempt, err error) (*Response, error) {
	var respErr *ResponseError
	isResponse := errors.As(err, &respErr)
	authEndpoint := c.IsAuthEndpoint(a.request.Path)
	if isResponse && respErr.StatusCode == http.StatusUnauthorized {
		if authEndpoint {
			// the caller interprets these (e.g. wrong password), nothing is shown from here
			slog.Debug(
				"API CLIENT",
				"message",
				"401 from an authentication endpoint, passing it to the caller",
				"path",
				a.request.Path,
				"requestID",
				a.requestID,
			)
			return nil, err
		}
		if !a.retried {
			a.retried = true
			resp, retryErr, handled := c.refreshAndRetry(ctx, a)
			if handled {
				return resp, retryErr
			}
		}
	}
	c.notify(ctx, err)
	return nil, err
}

// refreshAndRetry returns handled=false when no refresh token is available, also when it
// vanished between the check and the refresh, so that the original error goes through the
// generic handling.
func (c *Client) refreshAndRetry(ctx context.Context, a *attempt) (*Response, error, bool) {
	refreshToken, err := credentials.GetOptional(ctx, c.store, models.RefreshTokenKey)
	if err != nil {
		slog.Error("API CLIENT", "message", "reading the refresh token failed", "error", err, "requestID", a.requestID)
		return nil, nil, false
	}
	if refreshToken == "" {
		slog.Debug("API CLIENT", "message", "no refresh token available, not retrying", "requestID", a.requestID)
		return nil, nil, false
	}
	current, err := credentials.GetOptional(ctx, c.store, models.AccessTokenKey)
	if err == nil && current != "" && current != a.sentToken {
		slog.Debug(
			"API CLIENT",
			"message",
			"access token was refreshed by another request, retrying with it",
			"requestID",
			a.requestID,
		)
		resp, err := c.execute(ctx, a)
		return resp, err, true
	}
	_, err = c.refresh(ctx)
	if errors.Is(err, apierrors.ErrMissingRefreshToken) {
		// a concurrent failed refresh ended the session after the token was read above
		slog.Debug("API CLIENT", "message", "refresh token disappeared before refreshing, not retrying", "requestID", a.requestID)
		return nil, nil, false
	}
	if err != nil {
		return nil, err, true
	}
	slog.Debug("API CLIENT", "message", "retrying request with the refreshed access token", "requestID", a.requestID)
	resp, err := c.execute(ctx, a)
	return resp, err, true
}

func (c *Client) resolve(path string, query url.Values) string {
	parsed, err := url.Parse(path)
	if err != nil {
		parsed = &url.URL{Path: path}
	}
	var u url.URL
	if parsed.IsAbs() {
		u = *parsed
	} else {
		u = *c.baseURL
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(parsed.Path, "/")
		u.RawPath = ""
		u.RawQuery = parsed.RawQuery
	}
	if len(query) > 0 {
		values := u.Query()
		for key, vals := range query {
			for _, val := range vals {
				values.Add(key, val)
			}
		}
		u.RawQuery = values.Encode()
	}
	return u.String()
}

// IsAuthEndpoint reports whether the path targets login, token refresh or registration.
// The match is a substring match on the configured endpoints so a change of the backend
// route prefix has to be reflected in the configuration.
func (c *Client) IsAuthEndpoint(path string) bool {
	for _, endpoint := range c.authEndpoints {
		if strings.Contains(path, endpoint) {
			return true
		}
	}
	return false
}

func (c *Client) send(ctx context.Context, a *attempt) (*Response, error) {
	if c.limiter != nil {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}
	target := c.resolve(a.request.Path, a.request.Query)
	httpReq, err := http.NewRequestWithContext(ctx, a.request.Method, target, a.bodyReader())
	if err != nil {
		return nil, err
	}
	for key, values := range a.request.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Content-Type", a.request.contentType())
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", contentTypeJSON)
	}
	a.requestID = utils.NewRequestID(c.idGenerator)
	if a.requestID != "" {
		httpReq.Header.Set(utils.HeaderRequestID, a.requestID)
	}
	accessToken, err := credentials.GetOptional(ctx, c.store, models.AccessTokenKey)
	if err != nil {
		return nil, fmt.Errorf("cannot read the access token: %w", err)
	}
	a.sentToken = accessToken
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	} else {
		httpReq.Header.Del("Authorization")
	}
	schoolCode, err := credentials.GetOptional(ctx, c.store, models.SchoolCodeKey)
	if err != nil {
		return nil, fmt.Errorf("cannot read the school code: %w", err)
	}
	if schoolCode != "" {
		httpReq.Header.Set(c.tenantHeader, schoolCode)
	}
	return c.roundTrip(httpReq, a.requestID)
}

func (c *Client) roundTrip(httpReq *http.Request, requestID string) (*Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		requestsTotal.WithLabelValues(codeClass(0)).Inc()
		slog.Debug(
			"API CLIENT",
			"message",
			"request failed without a response",
			"method",
			httpReq.Method,
			"url",
			httpReq.URL.Redacted(),
			"error",
			err,
			"requestID",
			requestID,
		)
		return nil, err
	}
	defer resp.Body.Close()
	requestsTotal.WithLabelValues(codeClass(resp.StatusCode)).Inc()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &url.Error{Op: httpReq.Method, URL: httpReq.URL.Redacted(), Err: err}
	}
	slog.Debug(
		"API CLIENT",
		"message",
		"request completed",
		"method",
		httpReq.Method,
		"url",
		httpReq.URL.Redacted(),
		"status",
		resp.StatusCode,
		"duration",
		time.Since(start),
		"requestID",
		requestID,
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{
			Method:     httpReq.Method,
			URL:        httpReq.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) notify(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// the caller gave up on the request, there is nobody to tell
		return
	}
	normalized := Normalize(err)
	notificationsTotal.WithLabelValues(string(normalized.Kind)).Inc()
	if c.observer == nil {
		return
	}
	c.observer.OnError(normalized)
}

type ClientOption func(*Client) error

func WithConfig(clientConfig config.ClientConfig) ClientOption {
	return func(c *Client) error {
		err := clientConfig.Validate()
		if err != nil {
			return err
		}
		c.baseURL = clientConfig.BaseURL
		c.tenantHeader = clientConfig.TenantHeader
		c.authEndpoints = clientConfig.AuthEndpoints
		if clientConfig.RefreshPath != "" {
			c.refreshPath = clientConfig.RefreshPath
		}
		if clientConfig.LoginRoute != "" {
			c.loginRoute = clientConfig.LoginRoute
		}
		if clientConfig.TimeoutSeconds > 0 {
			c.httpClient.Timeout = clientConfig.Timeout()
		}
		if clientConfig.RateLimits.Enabled {
			c.limiter = rate.NewLimiter(rate.Limit(clientConfig.RateLimits.Rate), clientConfig.RateLimits.Burst)
		}
		return nil
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return err
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("the base URL %q must be absolute", baseURL)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithCredentialStore(store credentials.Store) ClientOption {
	return func(c *Client) error {
		c.store = store
		return nil
	}
}

// WithHTTPClient replaces the underlying http client, its timeout is kept as is
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("the http client cannot be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

func WithErrorObserver(observer ErrorObserver) ClientOption {
	return func(c *Client) error {
		c.observer = observer
		return nil
	}
}

func WithLoginRedirector(redirector LoginRedirector) ClientOption {
	return func(c *Client) error {
		if redirector == nil {
			redirector = noopRedirector{}
		}
		c.redirector = redirector
		return nil
	}
}

func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) error {
		c.limiter = rate.NewLimiter(limit, burst)
		return nil
	}
}

func WithAuthEndpoints(endpoints ...string) ClientOption {
	return func(c *Client) error {
		if len(endpoints) == 0 {
			return fmt.Errorf("at least one authentication endpoint is required")
		}
		c.authEndpoints = endpoints
		return nil
	}
}

// WithRefreshPath sets the endpoint the refresh token is exchanged at. The path is always
// treated as an authentication endpoint.
func WithRefreshPath(path string) ClientOption {
	return func(c *Client) error {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("the refresh path cannot be empty")
		}
		c.refreshPath = path
		return nil
	}
}

func WithTenantHeader(header string) ClientOption {
	return func(c *Client) error {
		if strings.TrimSpace(header) == "" {
			return fmt.Errorf("the tenant header name cannot be empty")
		}
		c.tenantHeader = header
		return nil
	}
}

func WithIDGenerator(generator models.IDGenerator) ClientOption {
	return func(c *Client) error {
		c.idGenerator = generator
		return nil
	}
}

// NewClient creates the API client. A credential store and a base URL are required.
func NewClient(options ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		redirector:    noopRedirector{},
		idGenerator:   utils.ULIDGenerator{},
		tenantHeader:  DefaultTenantHeader,
		loginRoute:    DefaultLoginRoute,
		authEndpoints: DefaultAuthEndpoints,
		refreshPath:   RefreshPath,
	}
	for _, opt := range options {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, fmt.Errorf("the base URL is not set")
	}
	if c.store == nil {
		return nil, fmt.Errorf("credential store not initialized")
	}
	if !c.IsAuthEndpoint(c.refreshPath) {
		endpoints := make([]string, 0, len(c.authEndpoints)+1)
		endpoints = append(endpoints, c.authEndpoints...)
		c.authEndpoints = append(endpoints, c.refreshPath)
	}
	return c, nil
}
