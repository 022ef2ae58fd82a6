package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundColumns = `r.id, r.payment_id, r.amount, r.status, r.speed, r.reason, r.processed_at, r.error_code, r.error_description, r.created_at, r.updated_at`

func (r *refundRepo) Save(ctx context.Context, tx repository.Tx, rf *model.Refund) (bool, error) {
	const q = `
INSERT INTO refunds (id, payment_id, amount, status, speed, reason, processed_at, error_code, error_description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, rf.ID, rf.PaymentID, rf.Amount, string(rf.Status), string(rf.Speed), rf.Reason,
		rf.ProcessedAt, rf.ErrorCode, rf.ErrorDescription, rf.CreatedAt, rf.UpdatedAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds r WHERE r.id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanRefund(row)
}

// UpdateStatusIf atomically updates status only when the current status is u.From.
func (r *refundRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, u repository.RefundStatusUpdate) (bool, error) {
	const q = `
UPDATE refunds
   SET status = $3,
       processed_at = COALESCE($4, processed_at),
       error_code = COALESCE($5, error_code),
       error_description = COALESCE($6, error_description),
       updated_at = NOW()
 WHERE id = $1
   AND status = $2`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(u.From), string(u.To), u.ProcessedAt, u.ErrorCode, u.ErrorDescription)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *refundRepo) SumByPayment(ctx context.Context, tx repository.Tx, paymentID string, statuses ...model.RefundStatus) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM refunds WHERE payment_id=$1 AND status = ANY($2);`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID, statusStrings(statuses))
	if err != nil {
		return 0, mapErr(err)
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, scanErr(err)
	}
	return sum, nil
}

func (r *refundRepo) List(ctx context.Context, tx repository.Tx, f model.RefundFilter, offset, limit int) ([]*model.Refund, int64, error) {
	where, args := refundWhere(f)

	countQ := `SELECT COUNT(*) FROM refunds r JOIN payments p ON p.id = r.payment_id` + where
	row, err := pickRow(ctx, r.pool, tx, countQ, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, scanErr(err)
	}
	if total == 0 || int64(offset) >= total {
		return []*model.Refund{}, total, nil
	}

	args = append(args, offset, limit)
	listQ := fmt.Sprintf(`SELECT %s FROM refunds r JOIN payments p ON p.id = r.payment_id%s ORDER BY r.created_at DESC, r.id DESC OFFSET $%d LIMIT $%d`,
		refundColumns, where, len(args)-1, len(args))
	items, err := r.queryRefunds(ctx, tx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func refundWhere(f model.RefundFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("r.status = $%d", string(f.Status))
	}
	if f.PaymentID != "" {
		add("r.payment_id = $%d", f.PaymentID)
	}
	if f.Email != "" {
		add("LOWER(p.email) = LOWER($%d)", f.Email)
	}
	if f.From != nil {
		add("r.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("r.created_at < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *refundRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Refund, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + refundColumns + ` FROM refunds r
 WHERE r.status IN ('INITIATED','PROCESSING') AND r.updated_at < $1
 ORDER BY r.updated_at ASC LIMIT $2;`
	return r.queryRefunds(ctx, tx, q, olderThan, limit)
}

func (r *refundRepo) SumProcessed(ctx context.Context, tx repository.Tx, w model.TimeWindow) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount),0)
  FROM refunds
 WHERE status='PROCESSED'
   AND ($1::timestamptz IS NULL OR processed_at >= $1)
   AND ($2::timestamptz IS NULL OR processed_at <  $2);`
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

func (r *refundRepo) CountProcessedBySpeed(ctx context.Context, tx repository.Tx) (map[model.RefundSpeed]int64, error) {
	const q = `SELECT speed, COUNT(*) FROM refunds WHERE status='PROCESSED' GROUP BY speed;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := map[model.RefundSpeed]int64{model.RefundSpeedInstant: 0, model.RefundSpeedNormal: 0}
	for rows.Next() {
		var speed string
		var n int64
		if err := rows.Scan(&speed, &n); err != nil {
			return nil, scanErr(err)
		}
		out[model.RefundSpeed(speed)] = n
	}
	return out, mapErr(rows.Err())
}

func (r *refundRepo) AverageProcessingSeconds(ctx context.Context, tx repository.Tx) (float64, bool, error) {
	const q = `
SELECT AVG(EXTRACT(EPOCH FROM (processed_at - created_at)))::float8
  FROM refunds
 WHERE status='PROCESSED' AND processed_at IS NOT NULL;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, false, mapErr(err)
	}
	var avg *float64
	if err := row.Scan(&avg); err != nil {
		return 0, false, scanErr(err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func (r *refundRepo) MonthlyProcessed(ctx context.Context, tx repository.Tx, since time.Time) ([]model.MonthlyRefundData, error) {
	const q = `
SELECT TO_CHAR(DATE_TRUNC('month', processed_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       COALESCE(SUM(amount),0), COUNT(*)
  FROM refunds
 WHERE status='PROCESSED' AND processed_at >= $1
 GROUP BY 1
 ORDER BY 1;`
	rows, err := queryRows(ctx, r.pool, tx, q, since)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.MonthlyRefundData
	for rows.Next() {
		var m model.MonthlyRefundData
		if err := rows.Scan(&m.Month, &m.Amount, &m.Count); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (r *refundRepo) CountByStatus(ctx context.Context, tx repository.Tx, statuses ...model.RefundStatus) (int64, error) {
	const q = `SELECT COUNT(*) FROM refunds WHERE status = ANY($1);`
	row, err := pickRow(ctx, r.pool, tx, q, statusStrings(statuses))
	if err != nil {
		return 0, mapErr(err)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func (r *refundRepo) queryRefunds(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Refund, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []*model.Refund{}
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanRefund(row pgx.Row) (*model.Refund, error) {
	rf := &model.Refund{}
	var status, speed string
	if err := row.Scan(&rf.ID, &rf.PaymentID, &rf.Amount, &status, &speed, &rf.Reason, &rf.ProcessedAt,
		&rf.ErrorCode, &rf.ErrorDescription, &rf.CreatedAt, &rf.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	rf.Status = model.RefundStatus(status)
	rf.Speed = model.RefundSpeed(speed)
	return rf, nil
}

func statusStrings(ss []model.RefundStatus) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}
