package repository

import (
	"context"

	"billing-reconciler/internal/domain/model"
)

type WebhookEventRepository interface {
	Append(ctx context.Context, tx Tx, ev *model.WebhookEvent) error
}
