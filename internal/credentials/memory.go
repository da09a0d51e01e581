package credentials

import (
	"context"
	"sync"

	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/models"
)

// MemoryStore keeps credentials in process memory, they are lost when the process exits.
// The zero value is ready to use.
type MemoryStore struct {
	lock   sync.RWMutex
	values map[models.CredentialKey]string
}

func (m *MemoryStore) Get(_ context.Context, key models.CredentialKey) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	value, found := m.values[key]
	if !found {
		return "", apierrors.ErrCredentialNotFound
	}
	return value, nil
}

func (m *MemoryStore) Set(_ context.Context, key models.CredentialKey, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.values == nil {
		m.values = map[models.CredentialKey]string{}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, keys ...models.CredentialKey) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

// Len returns the number of stored entries
func (m *MemoryStore) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.values)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[models.CredentialKey]string{}}
}
