package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var (
	_ repository.ServiceConfigRepository  = (*serviceConfigRepo)(nil)
	_ repository.ServiceHistoryRepository = (*serviceHistoryRepo)(nil)
)

type serviceConfigRepo struct{ pool *pgxpool.Pool }

func NewServiceConfigRepo(pool *pgxpool.Pool) *serviceConfigRepo {
	return &serviceConfigRepo{pool: pool}
}

const serviceColumns = `id, name, price_minor, currency, duration_days, grace_days, active, updated_at`

func (r *serviceConfigRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ServiceConfig, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+serviceColumns+` FROM service_configs WHERE id=$1;`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanService(row)
}

func (r *serviceConfigRepo) Save(ctx context.Context, tx repository.Tx, s *model.ServiceConfig) error {
	const q = `
INSERT INTO service_configs (` + serviceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price_minor=$3, currency=$4, duration_days=$5, grace_days=$6, active=$7, updated_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Name, s.PriceMinor, s.Currency, s.DurationDays, s.GraceDays, s.Active, s.UpdatedAt)
	return mapErr(err)
}

func (r *serviceConfigRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.ServiceConfig, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+serviceColumns+` FROM service_configs ORDER BY name;`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.ServiceConfig
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

func scanService(row pgx.Row) (*model.ServiceConfig, error) {
	s := &model.ServiceConfig{}
	if err := row.Scan(&s.ID, &s.Name, &s.PriceMinor, &s.Currency, &s.DurationDays, &s.GraceDays, &s.Active, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return s, nil
}

type serviceHistoryRepo struct{ pool *pgxpool.Pool }

func NewServiceHistoryRepo(pool *pgxpool.Pool) *serviceHistoryRepo {
	return &serviceHistoryRepo{pool: pool}
}

func (r *serviceHistoryRepo) Append(ctx context.Context, tx repository.Tx, h *model.ServiceHistory) error {
	const q = `
INSERT INTO service_history (id, service_id, field, old_value, new_value, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, h.ID, h.ServiceID, h.Field, h.OldValue, h.NewValue, h.ChangedBy, h.ChangedAt)
	return mapErr(err)
}

func (r *serviceHistoryRepo) ListByService(ctx context.Context, tx repository.Tx, serviceID string, limit int) ([]*model.ServiceHistory, error) {
	const q = `
SELECT id, service_id, field, old_value, new_value, changed_by, changed_at
  FROM service_history WHERE service_id=$1 ORDER BY changed_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, serviceID, limitOr(limit))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.ServiceHistory
	for rows.Next() {
		h := &model.ServiceHistory{}
		if err := rows.Scan(&h.ID, &h.ServiceID, &h.Field, &h.OldValue, &h.NewValue, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err())
}
