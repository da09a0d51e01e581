package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Implements the LimitedRedisClient interface
// Only suitable for testing and local development
// The value set for the IntCmd results is always the number of keys touched
// Contexts are completely ignored
type MockRedisClient struct {
	lock  sync.Mutex
	store map[string]map[string]string
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{store: map[string]map[string]string{}}
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.NewIntCmd(context.Background())
	if len(values)%2 != 0 {
		res.SetErr(fmt.Errorf("number of provided values must be even"))
		return res
	}
	hash, found := m.store[key]
	if !found {
		hash = map[string]string{}
		m.store[key] = hash
	}
	for i := 0; i < len(values); i += 2 {
		field, ok := values[i].(string)
		if !ok {
			res.SetErr(fmt.Errorf("hash field names must be strings, got %T", values[i]))
			return res
		}
		hash[field] = fmt.Sprint(values[i+1])
	}
	res.SetVal(int64(len(values) / 2))
	return res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.NewMapStringStringCmd(context.Background())
	output := map[string]string{}
	for field, value := range m.store[key] {
		output[field] = value
	}
	res.SetVal(output)
	return res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.NewIntCmd(context.Background())
	var deleted int64
	for _, key := range keys {
		if _, found := m.store[key]; found {
			delete(m.store, key)
			deleted++
		}
	}
	res.SetVal(deleted)
	return res
}

// Keys lists the keys currently present in the mock
func (m *MockRedisClient) Keys() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	keys := make([]string, 0, len(m.store))
	for key := range m.store {
		keys = append(keys, key)
	}
	return keys
}
