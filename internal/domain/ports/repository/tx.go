package repository

import "context"

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn within a store transaction, passing the
// underlying handle via tx. The concrete type of tx is infra-defined
// (pgx.Tx for Postgres). Repositories must accept a nil tx.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
