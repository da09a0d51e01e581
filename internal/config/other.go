package config

import (
	"fmt"
	"time"
)

type SentryConfig struct {
	Enabled     bool
	Dsn         RedactedString
	Environment string
	SampleRate  float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type MonitoringConfig struct {
	Sentry     SentryConfig
	Prometheus PrometheusConfig
}

type RefresherConfig struct {
	Enabled             bool
	IntervalSeconds     int
	ExpiryMarginSeconds int
}

func (c RefresherConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c RefresherConfig) ExpiryMargin() time.Duration {
	return time.Duration(c.ExpiryMarginSeconds) * time.Second
}

func (c RefresherConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid value for refresher interval (%d)", c.IntervalSeconds)
	}
	if c.ExpiryMarginSeconds <= 0 {
		return fmt.Errorf("invalid value for refresher expiry margin (%d)", c.ExpiryMarginSeconds)
	}
	return nil
}

type MockBackendConfig struct {
	Host                   string
	Port                   int
	SigningKey             RedactedString
	AccessTokenTTLSeconds  int
	RefreshTokenTTLSeconds int
	RotateRefreshTokens    bool
}

func (c MockBackendConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

func (c MockBackendConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

func (c MockBackendConfig) Validate() error {
	if c.AccessTokenTTLSeconds <= 0 || c.RefreshTokenTTLSeconds <= 0 {
		return fmt.Errorf("mock backend token TTLs must be positive")
	}
	if c.RefreshTokenTTLSeconds < c.AccessTokenTTLSeconds {
		return fmt.Errorf(
			"mock backend refresh token TTL (%d) cannot be less than the access token TTL (%d)",
			c.RefreshTokenTTLSeconds,
			c.AccessTokenTTLSeconds,
		)
	}
	return nil
}
