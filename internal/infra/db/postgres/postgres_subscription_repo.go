package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, service_id, payment_id, status, start_at, end_at, grace_end_at, cancelled_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=$5, end_at=$7, grace_end_at=$8, cancelled_at=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.ServiceID, s.PaymentID, string(s.Status), s.StartAt, s.EndAt,
		s.GraceEndAt, s.CancelledAt, s.CreatedAt, s.UpdatedAt)
	return mapErr(err)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActiveByUserService(ctx context.Context, tx repository.Tx, userID, serviceID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE user_id=$1 AND service_id=$2 AND status='ACTIVE'
 ORDER BY end_at DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, userID, serviceID)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListActiveEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status='ACTIVE' AND end_at <= $1
 ORDER BY end_at ASC LIMIT $2;`
	return r.querySubscriptions(ctx, tx, q, cutoff, limitOr(limit))
}

func (r *subscriptionRepo) ListGraceEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status='GRACE' AND grace_end_at <= $1
 ORDER BY grace_end_at ASC LIMIT $2;`
	return r.querySubscriptions(ctx, tx, q, cutoff, limitOr(limit))
}

func (r *subscriptionRepo) ListActiveEndingBetween(ctx context.Context, tx repository.Tx, after time.Time, afterID string, to time.Time, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status='ACTIVE' AND (end_at, id) > ($1::timestamptz, $2::text) AND end_at <= $3
 ORDER BY end_at ASC, id ASC LIMIT $4;`
	return r.querySubscriptions(ctx, tx, q, after, afterID, to, limitOr(limit))
}

// TransitionStatus is a compare-and-set on status; concurrent runs cannot both apply it.
func (r *subscriptionRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from []model.SubscriptionStatus, to model.SubscriptionStatus, graceEndAt *time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
   SET status = $3,
       grace_end_at = COALESCE($4, grace_end_at),
       cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN NOW() ELSE cancelled_at END,
       updated_at = NOW()
 WHERE id = $1
   AND status = ANY($2)`
	fromStr := make([]string, 0, len(from))
	for _, s := range from {
		fromStr = append(fromStr, string(s))
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, fromStr, string(to), graceEndAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) ExtendEnd(ctx context.Context, tx repository.Tx, id string, endAt time.Time) error {
	const q = `UPDATE subscriptions SET end_at=$2, updated_at=NOW() WHERE id=$1 AND status='ACTIVE';`
	_, err := execSQL(ctx, r.pool, tx, q, id, endAt)
	return mapErr(err)
}

func (r *subscriptionRepo) querySubscriptions(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.ServiceID, &s.PaymentID, &status, &s.StartAt, &s.EndAt, &s.GraceEndAt,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func limitOr(limit int) int {
	if limit <= 0 {
		return 500
	}
	return limit
}
