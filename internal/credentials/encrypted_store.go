package credentials

import (
	"context"

	"github.com/schoolhub/schoolctl/internal/models"
)

func (e *EncryptedStore) Get(ctx context.Context, key models.CredentialKey) (string, error) {
	value, err := e.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return e.encryptor.Decrypt(value)
}

func (e *EncryptedStore) Set(ctx context.Context, key models.CredentialKey, value string) error {
	encrypted, err := e.encryptor.Encrypt(value)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, key, encrypted)
}

func (e *EncryptedStore) Clear(ctx context.Context, keys ...models.CredentialKey) error {
	return e.store.Clear(ctx, keys...)
}
