package repository

import (
	"context"

	"billing-reconciler/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	Save(ctx context.Context, tx Tx, u *model.User) error
}
