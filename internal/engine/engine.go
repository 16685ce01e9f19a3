// Package engine implements the pharmacy's transactional domain rules:
// prescription validation and fulfillment, budget-guarded restocking, and
// ledger postings. Each operation runs as a single all-or-nothing transaction
// against the store; nothing is retried and no partial effect survives a
// failure.
package engine

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Engine struct {
	db *sqlx.DB
}

// New constructs an Engine on top of an already-migrated store.
func New(db *sqlx.DB) *Engine {
	return &Engine{db: db}
}

// inTx runs fn inside one transaction, committing only if fn returns nil.
// With the single-connection SQLite pool, transactions never interleave, so
// every check-then-write sequence inside fn is serialized.
func (e *Engine) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStore, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}
