// Package credentials persists the access token, refresh token, cached user and school code
// used by the API client.
package credentials

import (
	"context"
	"errors"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/models"
)

type CredentialGetter interface {
	// Get returns apierrors.ErrCredentialNotFound when the key holds no value
	Get(ctx context.Context, key models.CredentialKey) (string, error)
}

type CredentialSetter interface {
	Set(ctx context.Context, key models.CredentialKey, value string) error
}

type CredentialRemover interface {
	// Clear removes all the given keys together
	Clear(ctx context.Context, keys ...models.CredentialKey) error
}

type Store interface {
	CredentialGetter
	CredentialSetter
	CredentialRemover
}

// GetOptional returns an empty string instead of an error when the key is not set
func GetOptional(ctx context.Context, store CredentialGetter, key models.CredentialKey) (string, error) {
	value, err := store.Get(ctx, key)
	if errors.Is(err, apierrors.ErrCredentialNotFound) {
		return "", nil
	}
	return value, err
}
