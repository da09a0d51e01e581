package config

import (
	"fmt"
	"log/slog"
)

const CredentialStoreTypeMemory string = "memory"
const CredentialStoreTypeFile string = "file"
const CredentialStoreTypeRedis string = "redis"
const CredentialStoreTypeRedisMock string = "redis-mock"

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

type CredentialsConfig struct {
	Type       string
	Path       string
	Namespace  string
	Encryption TokenEncryptionConfig
}

func (c *CredentialsConfig) Validate(e RunningEnvironment) error {
	slog.Debug("credentials configuration info", "config", c)
	switch c.Type {
	case CredentialStoreTypeMemory, CredentialStoreTypeRedis:
	case CredentialStoreTypeFile:
		if c.Path == "" {
			return fmt.Errorf("the credentials file store needs a path")
		}
	case CredentialStoreTypeRedisMock:
		if e != Development {
			return fmt.Errorf("credentials store type cannot be \"redis-mock\" in production")
		}
	default:
		return fmt.Errorf(
			"unknown credentials store type %q (must be one of memory, file, redis, redis-mock)",
			c.Type,
		)
	}
	if c.Encryption.Enabled && len(c.Encryption.SecretKey) != 32 {
		return fmt.Errorf(
			"credentials encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.Encryption.SecretKey),
		)
	}
	return nil
}
