package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getValidConfig(t *testing.T) Config {
	baseURL, err := url.Parse("https://api.school.example/api")
	require.NoError(t, err)
	return Config{
		RunningEnvironment: Production,
		Client: ClientConfig{
			BaseURL:        baseURL,
			TenantHeader:   "X-School-Code",
			TimeoutSeconds: 30,
			LoginRoute:     "/login",
			AuthEndpoints:  []string{"/auth/login/", "/auth/token/refresh/", "/auth/users/register/"},
			RefreshPath:    "/auth/token/refresh/",
		},
		Credentials: CredentialsConfig{
			Type:      CredentialStoreTypeFile,
			Path:      "/tmp/credentials.yaml",
			Namespace: "default",
		},
		Refresher: RefresherConfig{IntervalSeconds: 60, ExpiryMarginSeconds: 120},
		MockBackend: MockBackendConfig{
			AccessTokenTTLSeconds:  300,
			RefreshTokenTTLSeconds: 86400,
		},
	}
}

func TestValidConfig(t *testing.T) {
	config := getValidConfig(t)

	err := config.Validate()

	assert.NoError(t, err)
}

func TestInvalidConfigs(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.RunningEnvironment = "staging" }},
		{"missing base URL", func(c *Config) { c.Client.BaseURL = nil }},
		{"base URL without host", func(c *Config) { c.Client.BaseURL = &url.URL{Scheme: "https"} }},
		{"base URL with bad scheme", func(c *Config) { c.Client.BaseURL = &url.URL{Scheme: "ftp", Host: "x"} }},
		{"empty tenant header", func(c *Config) { c.Client.TenantHeader = " " }},
		{"no auth endpoints", func(c *Config) { c.Client.AuthEndpoints = nil }},
		{"no refresh path", func(c *Config) { c.Client.RefreshPath = "" }},
		{"rate limits without burst", func(c *Config) {
			c.Client.RateLimits = RateLimits{Enabled: true, Rate: 5, Burst: 0}
		}},
		{"unknown store type", func(c *Config) { c.Credentials.Type = "cookie" }},
		{"file store without path", func(c *Config) { c.Credentials.Path = "" }},
		{"redis mock in production", func(c *Config) { c.Credentials.Type = CredentialStoreTypeRedisMock }},
		{"redis without addresses", func(c *Config) { c.Credentials.Type = CredentialStoreTypeRedis }},
		{"short encryption key", func(c *Config) {
			c.Credentials.Encryption = TokenEncryptionConfig{Enabled: true, SecretKey: "invalid"}
		}},
		{"refresher without interval", func(c *Config) {
			c.Refresher = RefresherConfig{Enabled: true, ExpiryMarginSeconds: 60}
		}},
		{"mock backend refresh TTL too short", func(c *Config) { c.MockBackend.RefreshTokenTTLSeconds = 10 }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			config := getValidConfig(t)
			testCase.mutate(&config)

			err := config.Validate()

			assert.Error(t, err)
		})
	}
}

func TestRedisMockAllowedInDevelopment(t *testing.T) {
	config := getValidConfig(t)
	config.RunningEnvironment = Development
	config.Credentials.Type = CredentialStoreTypeRedisMock

	err := config.Validate()

	assert.NoError(t, err)
}
