package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix string = "SCHOOLCTL"

// DefaultBaseURL is the API address used when nothing else is configured
const DefaultBaseURL string = "http://localhost:8000/api"

type ConfigHandler struct {
	mainViper   *viper.Viper
	secretViper *viper.Viper
	lock        *sync.Mutex
}

func (c *ConfigHandler) HandleChanges(callback func(Config, error)) {
	c.mainViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("main config file changed", "path", e.Name)
		callback(c.Config())
	})
	c.secretViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("secret config file changed", "path", e.Name)
		callback(c.Config())
	})
}

// Creates a configuration handler that reads the configuration files, merges them and can watch
// them for changes. Both files are optional, anything missing falls back to the defaults.
// The secret file overwrites anything in the regular file and environment variables
// (SCHOOLCTL_CLIENT_BASEURL for client.baseURL) overwrite both.
func NewConfigHandler() *ConfigHandler {
	main := viper.New()
	main.SetConfigType("yaml")
	main.SetConfigName("config")
	setDefaults(main)
	secret := viper.New()
	secret.SetConfigType("yaml")
	secret.SetConfigName("secret_config")
	// Viper will look through the list of paths and use the first one where there is a file
	// so the path specified in the env variable will always take precedence over the rest
	configPaths := []string{}
	configPathEnv := os.Getenv("CONFIG_LOCATION")
	if configPathEnv != "" {
		configPaths = append(configPaths, configPathEnv)
	}
	configPaths = append(configPaths, "/etc/schoolctl")
	if home, err := os.UserHomeDir(); err == nil {
		configPaths = append(configPaths, filepath.Join(home, ".config", "schoolctl"))
	}
	configPaths = append(configPaths, ".")
	for _, path := range configPaths {
		main.AddConfigPath(path)
		secret.AddConfigPath(path)
	}
	return &ConfigHandler{secretViper: secret, mainViper: main, lock: &sync.Mutex{}}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runningEnvironment", string(Production))
	v.SetDefault("debugMode", false)
	v.SetDefault("client.baseURL", DefaultBaseURL)
	v.SetDefault("client.tenantHeader", "X-School-Code")
	v.SetDefault("client.timeoutSeconds", 30)
	v.SetDefault("client.loginRoute", "/login")
	v.SetDefault("client.authEndpoints", []string{"/auth/login/", "/auth/token/refresh/", "/auth/users/register/"})
	v.SetDefault("client.refreshPath", "/auth/token/refresh/")
	v.SetDefault("client.rateLimits.enabled", false)
	v.SetDefault("client.rateLimits.rate", 10)
	v.SetDefault("client.rateLimits.burst", 20)
	v.SetDefault("credentials.type", CredentialStoreTypeFile)
	v.SetDefault("credentials.path", filepath.Join("~", ".config", "schoolctl", "credentials.yaml"))
	v.SetDefault("credentials.namespace", "default")
	v.SetDefault("credentials.encryption.enabled", false)
	v.SetDefault("credentials.encryption.secretKey", "")
	v.SetDefault("redis.addresses", []string{})
	v.SetDefault("redis.isSentinel", false)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.masterName", "")
	v.SetDefault("redis.dbIndex", 0)
	v.SetDefault("refresher.enabled", false)
	v.SetDefault("refresher.intervalSeconds", 60)
	v.SetDefault("refresher.expiryMarginSeconds", 120)
	v.SetDefault("monitoring.sentry.enabled", false)
	v.SetDefault("monitoring.sentry.dsn", "")
	v.SetDefault("monitoring.sentry.environment", "")
	v.SetDefault("monitoring.sentry.sampleRate", 0)
	v.SetDefault("monitoring.prometheus.enabled", false)
	v.SetDefault("monitoring.prometheus.port", 8765)
	v.SetDefault("mockBackend.host", "127.0.0.1")
	v.SetDefault("mockBackend.port", 8000)
	v.SetDefault("mockBackend.signingKey", "")
	v.SetDefault("mockBackend.accessTokenTTLSeconds", 300)
	v.SetDefault("mockBackend.refreshTokenTTLSeconds", 86400)
	v.SetDefault("mockBackend.rotateRefreshTokens", false)
}

func readOptional(v *viper.Viper, name string) error {
	err := v.ReadInConfig()
	if err == nil {
		slog.Debug("read config file", "path", v.ConfigFileUsed())
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		slog.Debug("could not find the " + name + " config file, it will not be used")
		return nil
	}
	return err
}

func (c *ConfigHandler) merge() error {
	// only keys with a value (from the file or the environment) show up here
	cm := c.secretViper.AllSettings()
	return c.mainViper.MergeConfigMap(cm)
}

func (c *ConfigHandler) getConfig() (Config, error) {
	var output Config
	err := readOptional(c.mainViper, "main")
	if err != nil {
		return Config{}, err
	}
	err = readOptional(c.secretViper, "secret")
	if err != nil {
		return Config{}, err
	}
	// the env variables will overwrite stuff in the secret config if set
	for _, key := range c.mainViper.AllKeys() {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		err := c.secretViper.BindEnv(key, envKey)
		if err != nil {
			return Config{}, fmt.Errorf("config: unable to bind env %s: %w", envKey, err)
		}
	}
	// here the secret config (with any env variables merged) will overwrite anything from the non-secret configuration
	err = c.merge()
	if err != nil {
		return Config{}, err
	}
	err = c.mainViper.Unmarshal(
		&output,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				parseStringAsURL(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		),
	)
	if err != nil {
		return Config{}, err
	}
	err = output.Validate()
	if err != nil {
		return Config{}, err
	}
	return output, nil
}

func (c *ConfigHandler) Config() (Config, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.getConfig()
}

func (c *ConfigHandler) Watch() {
	if c.mainViper.ConfigFileUsed() != "" {
		c.mainViper.WatchConfig()
	}
	if c.secretViper.ConfigFileUsed() != "" {
		c.secretViper.WatchConfig()
	}
}

func parseStringAsURL() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (interface{}, error) {
		// Check that the data is string
		if f.Kind() != reflect.String {
			return data, nil
		}

		// Check that the target type is our custom type
		if t != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		// Return the parsed value
		dataStr, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("cannot cast URL value to string")
		}
		if dataStr == "" {
			return nil, fmt.Errorf("empty values are not allowed for URLs")
		}
		url, err := url.Parse(dataStr)
		if err != nil {
			return nil, err
		}
		return url, nil
	}
}
