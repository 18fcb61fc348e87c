package dao

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
)

// OldParamsDAO handles retention for the old_params table. Reads are served
// by TestDAO.GetOldParams since they are always scoped to one Test; this
// DAO exists only for the table-wide operations Cleaner and Stats need.
type OldParamsDAO struct {
	db *sqlx.DB
}

// NewOldParamsDAO returns an OldParamsDAO bound to db.
func NewOldParamsDAO(db *sqlx.DB) *OldParamsDAO { return &OldParamsDAO{db: db} }

// DeleteOldRecords removes OldParams rows older than threshold seconds.
func (d *OldParamsDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM old_params WHERE changed < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old old_params", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category count.
func (d *OldParamsDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM old_params`); err != nil {
		return nil, apperrors.NewTransactionError("count old_params", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
