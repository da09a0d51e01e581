package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.yaml"), "test")
			require.NoError(t, err)
			return store
		},
		"redis-mock": func(t *testing.T) Store {
			store, err := NewRedisStore(WithRedisClient(NewMockRedisClient()), WithNamespace("test"))
			require.NoError(t, err)
			return store
		},
		"encrypted-memory": func(t *testing.T) Store {
			enc, err := NewGCMEncryptor(testEncryptionKey)
			require.NoError(t, err)
			return NewEncryptedStore(NewMemoryStore(), enc)
		},
	}
}

func TestStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			_, err := store.Get(ctx, models.AccessTokenKey)
			assert.ErrorIs(t, err, apierrors.ErrCredentialNotFound)

			require.NoError(t, store.Set(ctx, models.AccessTokenKey, "access-1"))
			require.NoError(t, store.Set(ctx, models.RefreshTokenKey, "refresh-1"))
			require.NoError(t, store.Set(ctx, models.UserKey, `{"id":"1","username":"jdoe"}`))
			require.NoError(t, store.Set(ctx, models.SchoolCodeKey, "SCH-001"))
			require.NoError(t, store.Set(ctx, models.AccessTokenKey, "access-2"))

			value, err := store.Get(ctx, models.AccessTokenKey)
			require.NoError(t, err)
			assert.Equal(t, "access-2", value)
			value, err = store.Get(ctx, models.UserKey)
			require.NoError(t, err)
			assert.Equal(t, `{"id":"1","username":"jdoe"}`, value)

			require.NoError(t, store.Clear(ctx, models.AllCredentialKeys...))
			for _, key := range models.AllCredentialKeys {
				_, err := store.Get(ctx, key)
				assert.ErrorIs(t, err, apierrors.ErrCredentialNotFound, "key %s", key)
			}
		})
	}
}

func TestStoreClearPartial(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			require.NoError(t, store.Set(ctx, models.AccessTokenKey, "access"))
			require.NoError(t, store.Set(ctx, models.SchoolCodeKey, "SCH-001"))

			require.NoError(t, store.Clear(ctx, models.AccessTokenKey))

			_, err := store.Get(ctx, models.AccessTokenKey)
			assert.ErrorIs(t, err, apierrors.ErrCredentialNotFound)
			value, err := store.Get(ctx, models.SchoolCodeKey)
			require.NoError(t, err)
			assert.Equal(t, "SCH-001", value)
		})
	}
}

func TestGetOptional(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value, err := GetOptional(ctx, store, models.SchoolCodeKey)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.Set(ctx, models.SchoolCodeKey, "SCH-9"))
	value, err = GetOptional(ctx, store, models.SchoolCodeKey)
	require.NoError(t, err)
	assert.Equal(t, "SCH-9", value)
}

func TestFileStorePermissionsAndNamespaces(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	first, err := NewFileStore(path, "first")
	require.NoError(t, err)
	second, err := NewFileStore(path, "second")
	require.NoError(t, err)

	require.NoError(t, first.Set(ctx, models.AccessTokenKey, "first-token"))
	require.NoError(t, second.Set(ctx, models.AccessTokenKey, "second-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	value, err := first.Get(ctx, models.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "first-token", value)

	require.NoError(t, first.Clear(ctx, models.AllCredentialKeys...))
	value, err = second.Get(ctx, models.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "second-token", value)
}

func TestFileStoreInstancesSharingAFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	cli, err := NewFileStore(path, "default")
	require.NoError(t, err)
	refresher, err := NewFileStore(path, "default")
	require.NoError(t, err)
	const rounds = 100

	wg := sync.WaitGroup{}
	for _, writer := range []struct {
		store  *FileStore
		prefix string
	}{{cli, "cli"}, {refresher, "refresher"}} {
		wg.Add(1)
		go func(store *FileStore, prefix string) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				key := models.CredentialKey(fmt.Sprintf("%s-%d", prefix, i))
				assert.NoError(t, store.Set(ctx, key, "value"))
			}
		}(writer.store, writer.prefix)
	}
	wg.Wait()

	for i := 0; i < rounds; i++ {
		for _, prefix := range []string{"cli", "refresher"} {
			_, err := cli.Get(ctx, models.CredentialKey(fmt.Sprintf("%s-%d", prefix, i)))
			assert.NoError(t, err, "lost update %s-%d", prefix, i)
		}
	}

	require.NoError(t, refresher.Set(ctx, models.AccessTokenKey, "access"))
	require.NoError(t, cli.Clear(ctx, models.AccessTokenKey))
	_, err = refresher.Get(ctx, models.AccessTokenKey)
	assert.ErrorIs(t, err, apierrors.ErrCredentialNotFound)
}

func TestFileStoreHonoursContextWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	store, err := NewFileStore(path, "default")
	require.NoError(t, err)
	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = store.Set(ctx, models.AccessTokenKey, "access")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestZeroMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{}

	require.NoError(t, store.Set(ctx, models.SchoolCodeKey, "SCH-001"))

	value, err := store.Get(ctx, models.SchoolCodeKey)
	require.NoError(t, err)
	assert.Equal(t, "SCH-001", value)
	assert.Equal(t, 1, store.Len())
}

func TestRedisStoreKeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	rdb := NewMockRedisClient()
	store, err := NewRedisStore(WithRedisClient(rdb), WithNamespace("school-a"))
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, models.RefreshTokenKey, "refresh"))

	assert.Equal(t, []string{"school-a:credential:refresh_token"}, rdb.Keys())
	require.NoError(t, store.Clear(ctx, models.AllCredentialKeys...))
	assert.Empty(t, rdb.Keys())
}

func TestNewRedisStoreWithoutClient(t *testing.T) {
	_, err := NewRedisStore()
	assert.Error(t, err)
}

func TestEncryptedValuesAreNotStoredInPlaintext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	enc, err := NewGCMEncryptor(testEncryptionKey)
	require.NoError(t, err)
	store := NewEncryptedStore(inner, enc)

	require.NoError(t, store.Set(ctx, models.AccessTokenKey, "plain-access-token"))

	raw, err := inner.Get(ctx, models.AccessTokenKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, "plain-access-token")
	value, err := store.Get(ctx, models.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "plain-access-token", value)
}

func TestNewStoreFromConfig(t *testing.T) {
	store, err := NewStoreFromConfig(config.CredentialsConfig{Type: config.CredentialStoreTypeMemory}, config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStoreFromConfig(
		config.CredentialsConfig{
			Type:       config.CredentialStoreTypeRedisMock,
			Namespace:  "dev",
			Encryption: config.TokenEncryptionConfig{Enabled: true, SecretKey: testEncryptionKey},
		},
		config.RedisConfig{},
	)
	require.NoError(t, err)
	assert.IsType(t, &EncryptedStore{}, store)

	store, err = NewStoreFromConfig(
		config.CredentialsConfig{Type: config.CredentialStoreTypeFile, Path: "~/.schoolctl-test/credentials.yaml"},
		config.RedisConfig{},
	)
	require.NoError(t, err)
	fileStore, ok := store.(*FileStore)
	require.True(t, ok)
	assert.False(t, strings.HasPrefix(fileStore.path, "~"))

	_, err = NewStoreFromConfig(config.CredentialsConfig{Type: "cookie"}, config.RedisConfig{})
	assert.Error(t, err)
}
