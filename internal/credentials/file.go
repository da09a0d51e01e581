package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/models"
	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Value     string    `yaml:"value"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

type fileDocument struct {
	Namespaces map[string]map[models.CredentialKey]fileEntry `yaml:"namespaces"`
}

const fileLockRetryDelay time.Duration = 10 * time.Millisecond

// FileStore keeps credentials in a YAML file readable only by the current user. Several
// namespaces (profiles) can share the same file. Every read-modify-write holds an advisory
// lock on a sidecar "<path>.lock" file so that the CLI and a running refresher process do
// not overwrite each other.
type FileStore struct {
	path      string
	namespace string
	lock      sync.Mutex
}

func (f *FileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	err := os.MkdirAll(filepath.Dir(f.path), 0700)
	if err != nil {
		return err
	}
	fileLock := flock.New(f.path + ".lock")
	var locked bool
	if exclusive {
		locked, err = fileLock.TryLockContext(ctx, fileLockRetryDelay)
	} else {
		locked, err = fileLock.TryRLockContext(ctx, fileLockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("cannot lock credentials file %s: %w", f.path, err)
	}
	if !locked {
		return fmt.Errorf("cannot lock credentials file %s", f.path)
	}
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			slog.Error("CREDENTIALS", "message", "releasing the credentials file lock failed", "path", f.path, "error", unlockErr)
		}
	}()
	return fn()
}

func (f *FileStore) load() (fileDocument, error) {
	doc := fileDocument{Namespaces: map[string]map[models.CredentialKey]fileEntry{}}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	err = yaml.Unmarshal(raw, &doc)
	if err != nil {
		return doc, fmt.Errorf("cannot parse credentials file %s: %w", f.path, err)
	}
	if doc.Namespaces == nil {
		doc.Namespaces = map[string]map[models.CredentialKey]fileEntry{}
	}
	return doc, nil
}

func (f *FileStore) save(doc fileDocument) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	err = tmp.Chmod(0600)
	if err != nil {
		tmp.Close()
		return err
	}
	_, err = tmp.Write(raw)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Get(ctx context.Context, key models.CredentialKey) (string, error) {
	var value string
	err := f.withLock(ctx, false, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		entry, found := doc.Namespaces[f.namespace][key]
		if !found {
			return apierrors.ErrCredentialNotFound
		}
		value = entry.Value
		return nil
	})
	return value, err
}

func (f *FileStore) Set(ctx context.Context, key models.CredentialKey, value string) error {
	return f.withLock(ctx, true, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		if doc.Namespaces[f.namespace] == nil {
			doc.Namespaces[f.namespace] = map[models.CredentialKey]fileEntry{}
		}
		doc.Namespaces[f.namespace][key] = fileEntry{Value: value, UpdatedAt: time.Now().UTC()}
		return f.save(doc)
	})
}

// Clear removes the keys in a single write, a concurrent reader sees either all or none of them
func (f *FileStore) Clear(ctx context.Context, keys ...models.CredentialKey) error {
	return f.withLock(ctx, true, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		entries := doc.Namespaces[f.namespace]
		for _, key := range keys {
			delete(entries, key)
		}
		if len(entries) == 0 {
			delete(doc.Namespaces, f.namespace)
		}
		slog.Debug("CREDENTIALS", "message", "clearing credentials", "path", f.path, "namespace", f.namespace, "keys", keys)
		return f.save(doc)
	})
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func NewFileStore(path string, namespace string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("the credentials file path cannot be empty")
	}
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = "default"
	}
	return &FileStore{path: expanded, namespace: namespace}, nil
}
