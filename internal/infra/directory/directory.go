package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/domain/ports/repository"
	"billing-reconciler/internal/infra/metrics"
)

var _ adapter.UserDirectory = (*Directory)(nil)

// Directory resolves users from the store behind a size-bounded, expiring cache.
// Misses are not cached.
type Directory struct {
	users repository.UserRepository
	cache *expirable.LRU[string, model.User]
}

func New(users repository.UserRepository, cfg config.DirectoryConfig) *Directory {
	return &Directory{
		users: users,
		cache: expirable.NewLRU[string, model.User](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "must not be empty")
	}
	if u, ok := d.cache.Get(userID); ok {
		metrics.IncCacheRequest("user_directory", "hit")
		return &u, nil
	}
	metrics.IncCacheRequest("user_directory", "miss")
	u, err := d.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	d.cache.Add(userID, *u)
	return u, nil
}

// Forget drops a cached entry after the user record changes.
func (d *Directory) Forget(userID string) {
	d.cache.Remove(userID)
}
