package credentials

import (
	"context"
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/schoolhub/schoolctl/internal/apierrors"
	"github.com/schoolhub/schoolctl/internal/config"
	"github.com/schoolhub/schoolctl/internal/models"
)

const credentialPrefix string = "credential"

// RedisStore keeps every credential in its own redis hash so that several clients
// (for example a CLI and a background refresher) can share the same session.
type RedisStore struct {
	rdb       LimitedRedisClient
	namespace string
}

func (RedisStore) serializeStruct(strct any) []any {
	v := reflect.ValueOf(strct)
	t := v.Type()
	var output []any
	for i := 0; i < v.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		fieldName := t.Field(i).Name
		fieldValue := v.Field(i).Interface()
		marshaller, ok := fieldValue.(encoding.TextMarshaler)
		if !ok {
			output = append(output, fieldName, fieldValue)
			continue
		}
		rawBytes, err := marshaller.MarshalText()
		if err != nil {
			output = append(output, fieldName, fieldValue)
			continue
		}
		output = append(output, fieldName, string(rawBytes))
	}
	return output
}

func (RedisStore) deserializeToStruct(hash map[string]string, output any) error {
	if len(hash) == 0 {
		// HGetAll returns an empty list of keys and values if the element is not present in the DB
		// then this is deserialized the empty valued struct of whatever it is we are looking at
		return apierrors.ErrMissingDBResource
	}
	decoder, err := mapstructure.NewDecoder(
		&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result: output,
		},
	)
	if err != nil {
		return err
	}
	return decoder.Decode(hash)
}

func (r RedisStore) credentialKey(key models.CredentialKey) string {
	return r.namespace + ":" + credentialPrefix + ":" + string(key)
}

func (r RedisStore) Get(ctx context.Context, key models.CredentialKey) (string, error) {
	raw, err := r.rdb.HGetAll(ctx, r.credentialKey(key)).Result()
	if err != nil {
		return "", err
	}
	output := models.StoredCredential{}
	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == apierrors.ErrMissingDBResource {
			err = apierrors.ErrCredentialNotFound
		}
		return "", err
	}
	return output.Value, nil
}

func (r RedisStore) Set(ctx context.Context, key models.CredentialKey, value string) error {
	entry := models.StoredCredential{Value: value, UpdatedAt: time.Now().UTC()}
	return r.rdb.HSet(ctx, r.credentialKey(key), r.serializeStruct(entry)...).Err()
}

// Clear removes all the keys with a single DEL so that no other client sees a partially
// cleared session.
func (r RedisStore) Clear(ctx context.Context, keys ...models.CredentialKey) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, r.credentialKey(key))
	}
	return r.rdb.Del(ctx, redisKeys...).Err()
}

type RedisStoreOption func(*RedisStore) error

func WithRedisConfig(redisConfig config.RedisConfig) RedisStoreOption {
	return func(r *RedisStore) error {
		if len(redisConfig.Addresses) == 0 {
			return fmt.Errorf("at least one redis address is required")
		}
		if redisConfig.IsSentinel {
			rdb := redis.NewFailoverClient(&redis.FailoverOptions{
				MasterName:       redisConfig.MasterName,
				SentinelAddrs:    redisConfig.Addresses,
				Password:         string(redisConfig.Password),
				DB:               redisConfig.DBIndex,
				SentinelPassword: string(redisConfig.Password),
			})
			r.rdb = rdb
			return nil
		}
		rdb := redis.NewClient(&redis.Options{
			Password: string(redisConfig.Password),
			DB:       redisConfig.DBIndex,
			Addr:     redisConfig.Addresses[0],
		})
		r.rdb = rdb
		return nil
	}
}

func WithRedisClient(rdb LimitedRedisClient) RedisStoreOption {
	return func(r *RedisStore) error {
		r.rdb = rdb
		return nil
	}
}

func WithNamespace(namespace string) RedisStoreOption {
	return func(r *RedisStore) error {
		if namespace == "" {
			return fmt.Errorf("the redis namespace cannot be empty")
		}
		r.namespace = namespace
		return nil
	}
}

func NewRedisStore(options ...RedisStoreOption) (*RedisStore, error) {
	store := RedisStore{namespace: "default"}
	for _, opt := range options {
		err := opt(&store)
		if err != nil {
			return &RedisStore{}, err
		}
	}
	if store.rdb == nil {
		return &RedisStore{}, fmt.Errorf("redis client is not initialized")
	}
	return &store, nil
}
