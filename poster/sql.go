package poster

import (
	"context"
	"errors"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

var errEmptyStatement = errors.New("empty statement")

// Execute runs one data-modification statement in its own transaction and
// returns the rows affected. Any failure rolls the transaction back, so a
// statement either applies fully or not at all.
func Execute(ctx context.Context, db engine.Database, statement string) (int64, error) {
	if db == nil {
		return 0, engine.ErrSessionClosed
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.Exec(ctx, statement)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return rows, nil
}

func runNonQuery(ctx context.Context, sc *Scope, body *Payload) (*Result, error) {
	statement, ok := patch.Present(body.SQLNonQuery)
	if !ok {
		return nil, errQuery(errEmptyStatement)
	}
	rows, err := Execute(ctx, sc.Session.Database(), statement)
	if err != nil {
		return nil, errQuery(err)
	}
	return &Result{Status: Status{RowsAffected: &rows}}, nil
}
