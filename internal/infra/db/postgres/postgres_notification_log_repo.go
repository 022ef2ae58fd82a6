package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) repository.NotificationLogRepository {
	return &notificationLogRepo{pool: pool}
}

// Record relies on the UNIQUE (subscription_id, kind, threshold_days, period_end)
// constraint, so two concurrent runs cannot both claim the same notification.
func (r *notificationLogRepo) Record(ctx context.Context, tx repository.Tx, m repository.NotificationMark) (bool, error) {
	const q = `
INSERT INTO subscription_notifications (id, subscription_id, user_id, kind, threshold_days, period_end)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (subscription_id, kind, threshold_days, period_end) DO NOTHING`

	cmd, err := execSQL(ctx, r.pool, tx, q, uuid.NewString(), m.SubscriptionID, m.UserID, m.Kind, m.ThresholdDays, m.PeriodEnd)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *notificationLogRepo) Release(ctx context.Context, tx repository.Tx, m repository.NotificationMark) error {
	const q = `
DELETE FROM subscription_notifications
 WHERE subscription_id=$1 AND kind=$2 AND threshold_days=$3 AND period_end=$4`

	_, err := execSQL(ctx, r.pool, tx, q, m.SubscriptionID, m.Kind, m.ThresholdDays, m.PeriodEnd)
	return mapErr(err)
}
