// Package dao implements the persistence layer: one file per entity in the
// data model, all sharing the transaction-boundary discipline described by
// TxState and the RecordsCounter category→count bag used by Cleaner/Stats.
package dao

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
)

// TxState tells a DAO call how it relates to a surrounding SQL transaction,
// mirroring the source's transaction_finished hint:
//
//   - TxNone: this is a standalone query; commit (or auto-commit) immediately.
//   - TxContinue: part of an in-progress transaction; do not commit.
//   - TxFinish: the last statement of a transaction; commit after it runs.
type TxState int

const (
	TxNone TxState = iota
	TxContinue
	TxFinish
)

// Executor is the subset of *sqlx.DB / *sqlx.Tx that DAO methods need. A
// caller not using an explicit transaction passes a nil *sqlx.Tx, which
// resolve turns into the pool; a caller chaining operations passes the
// *sqlx.Tx returned by Begin.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Begin starts a transaction for a caller that will issue several DAO calls
// with TxContinue and finish with one call at TxFinish.
func Begin(ctx context.Context, db *sqlx.DB) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, nil)
}

// resolve picks the executor a DAO call should run against: the open
// transaction if one was supplied, otherwise the pool directly (each
// statement auto-commits on its own).
func resolve(db *sqlx.DB, tx *sqlx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return db
}

// finish commits tx when state is TxFinish. TxNone and TxContinue are no-ops
// here; TxNone already auto-committed because it ran directly against db.
func finish(tx *sqlx.Tx, state TxState) error {
	if state == TxFinish && tx != nil {
		if err := tx.Commit(); err != nil {
			return apperrors.NewTransactionError("commit", err)
		}
	}
	return nil
}

// RecordsCounter accumulates named categories for a single table census,
// used by Cleaner's return values and by Stats' hourly snapshot. Iterate
// yields every category followed by a synthetic "all" total, unless "all"
// was itself added as a category.
type RecordsCounter struct {
	categories map[string]int
	order      []string
}

// NewRecordsCounter returns an empty counter.
func NewRecordsCounter() *RecordsCounter {
	return &RecordsCounter{categories: make(map[string]int)}
}

// Add records count for category, overwriting any previous value.
func (c *RecordsCounter) Add(category string, count int) {
	if _, exists := c.categories[category]; !exists {
		c.order = append(c.order, category)
	}
	c.categories[category] = count
}

// Iterate calls fn once per category in insertion order, then once more
// with category "all" and the sum of every category's count. A counter
// that already holds an "all" category (the single-category tables) yields
// that entry only, so "all" is never reported twice.
func (c *RecordsCounter) Iterate(fn func(category string, count int)) {
	total := 0
	for _, category := range c.order {
		count := c.categories[category]
		total += count
		fn(category, count)
	}
	if _, exists := c.categories["all"]; !exists {
		fn("all", total)
	}
}
