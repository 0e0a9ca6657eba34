package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
)

// Tx is what a sink may do inside a transaction. *sqlx.Tx satisfies it.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

// RunInTx commits when fn returns nil and rolls back on an error or a panic. A panic is
// re-raised after the rollback.
func RunInTx(ctx context.Context, logger ectologger.Logger, db DB, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.WithContext(ctx).WithError(rbErr).Error("Rollback failed")
		}
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}
