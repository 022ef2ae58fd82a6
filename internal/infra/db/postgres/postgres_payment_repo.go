package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, user_id, email, service_id, amount, currency, status, created_at, verified_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OrderID, p.UserID, p.Email, p.ServiceID, p.Amount, p.Currency, string(p.Status), p.CreatedAt, p.VerifiedAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanPayment(row)
}

func (r *paymentRepo) SumVerified(ctx context.Context, tx repository.Tx, w model.TimeWindow) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount),0)
  FROM payments
 WHERE status='verified'
   AND ($1::timestamptz IS NULL OR created_at >= $1)
   AND ($2::timestamptz IS NULL OR created_at <  $2);`
	row, err := pickRow(ctx, r.pool, tx, q, w.From, w.To)
	if err != nil {
		return 0, mapErr(err)
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, scanErr(err)
	}
	return sum, nil
}

func (r *paymentRepo) ListCreatedBetween(ctx context.Context, tx repository.Tx, w model.TimeWindow, offset, limit int) ([]*model.Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
   AND ($2::timestamptz IS NULL OR created_at <  $2)
 ORDER BY created_at ASC, id ASC
 OFFSET $3 LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, tx, q, w.From, w.To, offset, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *paymentRepo) CountCreatedBetween(ctx context.Context, tx repository.Tx, from, to *time.Time) (int64, error) {
	const q = `
SELECT COUNT(*) FROM payments
 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
   AND ($2::timestamptz IS NULL OR created_at <  $2);`
	row, err := pickRow(ctx, r.pool, tx, q, from, to)
	if err != nil {
		return 0, mapErr(err)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var status string
	if err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Email, &p.ServiceID, &p.Amount, &p.Currency, &status, &p.CreatedAt, &p.VerifiedAt); err != nil {
		return nil, scanErr(err)
	}
	p.Status = model.PaymentStatus(status)
	return p, nil
}
