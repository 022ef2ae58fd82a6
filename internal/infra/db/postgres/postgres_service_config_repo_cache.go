package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
	"billing-reconciler/internal/infra/metrics"
	red "billing-reconciler/internal/infra/redis"
)

var _ repository.ServiceConfigRepository = (*serviceConfigCacheDecorator)(nil)

const serviceListKey = "service_config:all"

// serviceConfigCacheDecorator serves service prices from Redis. Reads inside a
// transaction always go to the database.
type serviceConfigCacheDecorator struct {
	inner repository.ServiceConfigRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewServiceConfigCacheDecorator(inner repository.ServiceConfigRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ServiceConfigRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "ServiceConfigCache").Logger()
	return &serviceConfigCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func serviceKey(id string) string { return fmt.Sprintf("service_config:%s", id) }

func (d *serviceConfigCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := serviceKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var svc model.ServiceConfig
		if json.Unmarshal([]byte(val), &svc) == nil {
			metrics.IncCacheRequest("service_config", "hit")
			return &svc, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("service_config", "miss")
	svc, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(svc); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return svc, nil
}

// Save invalidates before writing so a concurrent reader cannot repopulate a stale price
// after the write commits.
func (d *serviceConfigCacheDecorator) Save(ctx context.Context, tx repository.Tx, svc *model.ServiceConfig) error {
	if err := d.cache.Del(ctx, serviceKey(svc.ID), serviceListKey); err != nil {
		d.log.Warn().Err(err).Str("service_id", svc.ID).Msg("cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, svc)
}

func (d *serviceConfigCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.ServiceConfig, error) {
	if tx == nil {
		if val, err := d.cache.Get(ctx, serviceListKey); err == nil {
			var list []*model.ServiceConfig
			if json.Unmarshal([]byte(val), &list) == nil {
				metrics.IncCacheRequest("service_config_list", "hit")
				return list, nil
			}
		}
	}
	metrics.IncCacheRequest("service_config_list", "miss")
	list, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		if b, err := json.Marshal(list); err == nil {
			_ = d.cache.Set(ctx, serviceListKey, b, d.ttl)
		}
	}
	return list, nil
}
