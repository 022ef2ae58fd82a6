package repository

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
)

// -----------------------------
// Refunds
// -----------------------------

// RefundStatusUpdate carries the fields written together with a status change.
type RefundStatusUpdate struct {
	From             model.RefundStatus
	To               model.RefundStatus
	ProcessedAt      *time.Time
	ErrorCode        *string
	ErrorDescription *string
}

type RefundRepository interface {
	// Save inserts a refund. A second insert of the same id is a no-op and returns inserted=false.
	Save(ctx context.Context, tx Tx, r *model.Refund) (inserted bool, err error)
	// FindByID locks the row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Refund, error)
	// UpdateStatusIf applies u only when the stored status still equals u.From.
	// It reports whether a row was changed.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, u RefundStatusUpdate) (bool, error)

	// SumByPayment totals refunds of one payment in the given statuses.
	SumByPayment(ctx context.Context, tx Tx, paymentID string, statuses ...model.RefundStatus) (int64, error)

	// List returns refunds matching f, newest first, and the unpaged total.
	List(ctx context.Context, tx Tx, f model.RefundFilter, offset, limit int) ([]*model.Refund, int64, error)
	// ListStale returns INITIATED or PROCESSING refunds last updated before olderThan.
	ListStale(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Refund, error)

	// --- Aggregates over PROCESSED refunds, windowed by processed_at ---
	SumProcessed(ctx context.Context, tx Tx, w model.TimeWindow) (int64, error)
	CountProcessedBySpeed(ctx context.Context, tx Tx) (map[model.RefundSpeed]int64, error)
	// AverageProcessingSeconds returns ok=false when no PROCESSED refund exists.
	AverageProcessingSeconds(ctx context.Context, tx Tx) (avg float64, ok bool, err error)
	// MonthlyProcessed returns buckets keyed "YYYY-MM" for months with data from since onwards.
	MonthlyProcessed(ctx context.Context, tx Tx, since time.Time) ([]model.MonthlyRefundData, error)
	CountByStatus(ctx context.Context, tx Tx, statuses ...model.RefundStatus) (int64, error)
}
