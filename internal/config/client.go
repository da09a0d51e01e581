package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type RateLimits struct {
	Enabled bool
	Rate    float64
	Burst   int
}

type ClientConfig struct {
	BaseURL        *url.URL
	TenantHeader   string
	TimeoutSeconds int
	// LoginRoute is where the user is sent when the session cannot be recovered
	LoginRoute string
	// AuthEndpoints are matched as substrings of the request path. Requests to them are
	// never retried after a token refresh.
	AuthEndpoints []string
	// RefreshPath is where the refresh token is exchanged, it is always exempt like AuthEndpoints
	RefreshPath string
	RateLimits  RateLimits
}

func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *ClientConfig) Validate() error {
	if c.BaseURL == nil {
		return fmt.Errorf("the client base URL is not set")
	}
	if c.BaseURL.Scheme != "http" && c.BaseURL.Scheme != "https" {
		return fmt.Errorf("the client base URL must use http or https, got %q", c.BaseURL.Scheme)
	}
	if c.BaseURL.Host == "" {
		return fmt.Errorf("the client base URL %q has no host", c.BaseURL.String())
	}
	if strings.TrimSpace(c.TenantHeader) == "" {
		return fmt.Errorf("the tenant header name cannot be empty")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("invalid value for client timeout (%d)", c.TimeoutSeconds)
	}
	if len(c.AuthEndpoints) == 0 {
		return fmt.Errorf("at least one authentication endpoint has to be configured")
	}
	if strings.TrimSpace(c.RefreshPath) == "" {
		return fmt.Errorf("the token refresh path cannot be empty")
	}
	if c.RateLimits.Enabled && (c.RateLimits.Rate <= 0 || c.RateLimits.Burst <= 0) {
		return fmt.Errorf("rate limits need a positive rate and burst, got %v and %d", c.RateLimits.Rate, c.RateLimits.Burst)
	}
	return nil
}
