//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
	red "billing-reconciler/internal/infra/redis"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

func TestServiceConfigCacheDecorator_FindByID(t *testing.T) {
	ctx := context.Background()
	svc := &model.ServiceConfig{ID: "svc-1", Name: "Pro", PriceMinor: 49900, Currency: "INR", DurationDays: 30}

	t.Run("should return cached value without hitting the database", func(t *testing.T) {
		// --- Arrange ---
		b, _ := json.Marshal(svc)
		cache := &mockRedisClient{GetFunc: func(ctx context.Context, key string) (string, error) {
			if key != "service_config:svc-1" {
				t.Errorf("unexpected key %q", key)
			}
			return string(b), nil
		}}
		inner := &mockInnerServiceRepo{FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
			t.Fatal("inner repository should not be called on a hit")
			return nil, nil
		}}
		d := NewServiceConfigCacheDecorator(inner, cache, time.Hour, newTestLogger())

		// --- Act ---
		got, err := d.FindByID(ctx, nil, "svc-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.PriceMinor != 49900 {
			t.Errorf("expected cached price, got %d", got.PriceMinor)
		}
	})

	t.Run("should load from the database on a miss and populate the cache", func(t *testing.T) {
		// --- Arrange ---
		var setKey string
		cache := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", red.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, exp time.Duration) error {
				setKey = key
				return nil
			},
		}
		calls := 0
		inner := &mockInnerServiceRepo{FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
			calls++
			return svc, nil
		}}
		d := NewServiceConfigCacheDecorator(inner, cache, time.Hour, newTestLogger())

		// --- Act ---
		_, err := d.FindByID(ctx, nil, "svc-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 database call, got %d", calls)
		}
		if setKey != "service_config:svc-1" {
			t.Errorf("expected cache to be populated, got key %q", setKey)
		}
	})

	t.Run("should bypass the cache inside a transaction", func(t *testing.T) {
		cache := &mockRedisClient{GetFunc: func(ctx context.Context, key string) (string, error) {
			t.Fatal("cache should not be read inside a transaction")
			return "", nil
		}}
		inner := &mockInnerServiceRepo{FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
			return svc, nil
		}}
		d := NewServiceConfigCacheDecorator(inner, cache, time.Hour, newTestLogger())

		if _, err := d.FindByID(ctx, struct{}{}, "svc-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestServiceConfigCacheDecorator_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("should invalidate the entry and the list before saving", func(t *testing.T) {
		var deleted []string
		cache := &mockRedisClient{DelFunc: func(ctx context.Context, keys ...string) error {
			deleted = append(deleted, keys...)
			return nil
		}}
		saved := false
		inner := &mockInnerServiceRepo{SaveFunc: func(ctx context.Context, tx repository.Tx, svc *model.ServiceConfig) error {
			if len(deleted) != 2 {
				t.Error("expected invalidation before the write")
			}
			saved = true
			return nil
		}}
		d := NewServiceConfigCacheDecorator(inner, cache, time.Hour, newTestLogger())

		if err := d.Save(ctx, nil, &model.ServiceConfig{ID: "svc-1"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !saved {
			t.Fatal("expected inner save")
		}
		if deleted[0] != "service_config:svc-1" || deleted[1] != serviceListKey {
			t.Errorf("unexpected invalidated keys %v", deleted)
		}
	})
}
