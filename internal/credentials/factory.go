package credentials

import (
	"fmt"
	"log/slog"

	"github.com/schoolhub/schoolctl/internal/config"
)

// NewStoreFromConfig builds the credential store selected in the configuration,
// wrapping it with encryption when enabled.
func NewStoreFromConfig(credentialsConfig config.CredentialsConfig, redisConfig config.RedisConfig) (Store, error) {
	var store Store
	switch credentialsConfig.Type {
	case config.CredentialStoreTypeMemory:
		store = NewMemoryStore()
	case config.CredentialStoreTypeFile:
		fileStore, err := NewFileStore(credentialsConfig.Path, credentialsConfig.Namespace)
		if err != nil {
			return nil, err
		}
		store = fileStore
	case config.CredentialStoreTypeRedis:
		redisStore, err := NewRedisStore(WithRedisConfig(redisConfig), WithNamespace(credentialsConfig.Namespace))
		if err != nil {
			return nil, err
		}
		store = redisStore
	case config.CredentialStoreTypeRedisMock:
		redisStore, err := NewRedisStore(WithRedisClient(NewMockRedisClient()), WithNamespace(credentialsConfig.Namespace))
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, fmt.Errorf("unrecognized credentials store type %v", credentialsConfig.Type)
	}
	if credentialsConfig.Encryption.Enabled && credentialsConfig.Encryption.SecretKey != "" {
		slog.Info("credentials encryption is enabled")
		encryptor, err := NewGCMEncryptor(string(credentialsConfig.Encryption.SecretKey))
		if err != nil {
			return nil, err
		}
		store = NewEncryptedStore(store, encryptor)
	}
	return store, nil
}
