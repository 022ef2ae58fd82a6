//go:build !integration

package postgres

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
	red "billing-reconciler/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerServiceRepo mocks the database repository that the service config decorator wraps.
type mockInnerServiceRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, svc *model.ServiceConfig) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error)
	ListAllFunc  func(ctx context.Context, tx repository.Tx) ([]*model.ServiceConfig, error)
}

func (m *mockInnerServiceRepo) Save(ctx context.Context, tx repository.Tx, svc *model.ServiceConfig) error {
	return m.SaveFunc(ctx, tx, svc)
}
func (m *mockInnerServiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerServiceRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.ServiceConfig, error) {
	return m.ListAllFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, window, nil
}

func (m *mockRedisClient) Close() error { return nil }
