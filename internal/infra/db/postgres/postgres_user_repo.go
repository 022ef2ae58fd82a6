package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT id, email, display_name FROM users WHERE id=$1;`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName); err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}

// Save is used by the seed command and tests.
func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, display_name) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET email=$2, display_name=$3;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.DisplayName)
	return mapErr(err)
}
