package repository

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Save inserts a payment. A second insert of the same id is a no-op and returns inserted=false.
	Save(ctx context.Context, tx Tx, p *model.Payment) (inserted bool, err error)
	// FindByID locks the row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// SumVerified returns the total amount of verified payments created inside w.
	SumVerified(ctx context.Context, tx Tx, w model.TimeWindow) (int64, error)
	// ListCreatedBetween returns payments ordered by created_at, paged by offset/limit.
	ListCreatedBetween(ctx context.Context, tx Tx, w model.TimeWindow, offset, limit int) ([]*model.Payment, error)
	CountCreatedBetween(ctx context.Context, tx Tx, from, to *time.Time) (int64, error)
}
