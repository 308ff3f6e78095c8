package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrForeignTx = errors.New("transaction was not started by this repository")

// Tx is an open unit of work. Rollback after Commit is a no-op, so callers
// can always defer it.
type Tx interface {
	Commit() error
	Rollback() error
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func beginTx(ctx context.Context, db *sql.DB) (Tx, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

func unwrapTx(tx Tx) (*sql.Tx, error) {
	t, ok := tx.(*sqlTx)
	if !ok {
		return nil, ErrForeignTx
	}
	return t.tx, nil
}
