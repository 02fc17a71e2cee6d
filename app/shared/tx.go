package shared

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// TxRunner runs a function inside a database transaction. Services depend on
// this instead of *bun.DB directly so unit tests can substitute an in-memory
// runner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error
}

// BunTxRunner is the production TxRunner over bun.
type BunTxRunner struct {
	DB *bun.DB
}

func (r *BunTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return r.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}
