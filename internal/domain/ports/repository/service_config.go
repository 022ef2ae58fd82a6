package repository

import (
	"context"

	"billing-reconciler/internal/domain/model"
)

type ServiceConfigRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.ServiceConfig, error)
	Save(ctx context.Context, tx Tx, svc *model.ServiceConfig) error
	ListAll(ctx context.Context, tx Tx) ([]*model.ServiceConfig, error)
}

type ServiceHistoryRepository interface {
	Append(ctx context.Context, tx Tx, h *model.ServiceHistory) error
	ListByService(ctx context.Context, tx Tx, serviceID string, limit int) ([]*model.ServiceHistory, error)
}
