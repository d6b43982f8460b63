//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
	red "activation-service/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerActivationRepo mocks the database repository that the decorator wraps.
type mockInnerActivationRepo struct {
	CreateFunc     func(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) error
	FindByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (*model.ActivationRecord, error)
	UpdateFunc     func(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error)
	BindDeviceFunc func(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error)
}

func (m *mockInnerActivationRepo) Create(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) error {
	return m.CreateFunc(ctx, tx, rec)
}
func (m *mockInnerActivationRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationRecord, error) {
	return m.FindByCodeFunc(ctx, tx, code)
}
func (m *mockInnerActivationRepo) Update(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	return m.UpdateFunc(ctx, tx, code, patch)
}
func (m *mockInnerActivationRepo) BindDevice(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	return m.BindDeviceFunc(ctx, tx, code, deviceID)
}

// mockRedisClient mocks our Redis client wrapper. Nil funcs behave as no-ops.
type mockRedisClient struct {
	GetFunc  func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc  func(ctx context.Context, keys ...string) error
	PingFunc func(ctx context.Context) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.SetNXFunc == nil {
		return true, nil
	}
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}
func (m *mockRedisClient) Close() error { return nil }

// fakeRedis is a map-backed RedisClient for interleaving tests. TTLs are ignored;
// expire drops a key as if its TTL had elapsed.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

var _ red.RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = toString(value)
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = toString(value)
	return true, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return nil }
func (f *fakeRedis) Close() error               { return nil }

func (f *fakeRedis) expire(key string) { _ = f.Del(context.Background(), key) }

func (f *fakeRedis) peek(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		panic("fakeRedis: unsupported value type")
	}
}
