package usecase

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
)

// LifecycleRunner is what the scheduler needs from the subscription lifecycle.
type LifecycleRunner interface {
	Run(ctx context.Context) (model.LifecycleReport, error)
}

// RefundSyncer is what the reconciler needs to pull refund status from the gateway.
type RefundSyncer interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Refund, error)
	CheckStatus(ctx context.Context, refundID string) (*model.Refund, error)
}
