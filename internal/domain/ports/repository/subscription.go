package repository

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUserService(ctx context.Context, tx Tx, userID, serviceID string) (*model.Subscription, error)

	// ListActiveEndedBefore returns ACTIVE subscriptions with end_at <= cutoff.
	ListActiveEndedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Subscription, error)
	// ListGraceEndedBefore returns GRACE subscriptions with grace_end_at <= cutoff.
	ListGraceEndedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Subscription, error)
	// ListActiveEndingBetween returns ACTIVE subscriptions with end_at <= to whose
	// (end_at, id) sorts after (after, afterID), ordered by end_at then id.
	ListActiveEndingBetween(ctx context.Context, tx Tx, after time.Time, afterID string, to time.Time, limit int) ([]*model.Subscription, error)

	// TransitionStatus moves a subscription to `to` only when its current status is
	// one of `from`. It reports whether a row was changed.
	TransitionStatus(ctx context.Context, tx Tx, id string, from []model.SubscriptionStatus, to model.SubscriptionStatus, graceEndAt *time.Time) (bool, error)
	// ExtendEnd pushes end_at of an ACTIVE subscription.
	ExtendEnd(ctx context.Context, tx Tx, id string, endAt time.Time) error
}
