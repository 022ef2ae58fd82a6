package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres); nil means "no transaction".
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction. Repository calls made
// with the tx handle passed to fn take row locks (SELECT ... FOR UPDATE) where
// the contract says so. fn returning an error rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
