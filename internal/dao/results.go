package dao

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// ResultDAO persists immutable run outcomes.
type ResultDAO struct {
	db *sqlx.DB
}

// NewResultDAO returns a ResultDAO bound to db.
func NewResultDAO(db *sqlx.DB) *ResultDAO { return &ResultDAO{db: db} }

// Create inserts a new Result.
func (d *ResultDAO) Create(ctx context.Context, tx *sqlx.Tx, r *models.Result, state TxState) (*models.Result, error) {
	exec := resolve(d.db, tx)
	var out models.Result
	err := exec.GetContext(ctx, &out, `
		INSERT INTO results (id_test, version, planned, started, finished, status, recovery_attempt, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *`,
		r.IDTest, r.Version, r.Planned, r.Started, r.Finished, r.Status, r.RecoveryAttempt, r.Data)
	if err != nil {
		return nil, apperrors.NewTransactionError("create result", err)
	}
	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSince lists Results for idTest with id_result > sinceID, ascending.
func (d *ResultDAO) GetSince(ctx context.Context, idTest, sinceID int64) ([]models.Result, error) {
	var out []models.Result
	err := d.db.SelectContext(ctx, &out,
		`SELECT * FROM results WHERE id_test = $1 AND id_result > $2 ORDER BY id_result`, idTest, sinceID)
	if err != nil {
		return nil, apperrors.NewTransactionError("list results since", err)
	}
	return out, nil
}

// GetForTests lists Results for any of idTests with id_result > sinceID,
// the multi-result aggregation read path.
func (d *ResultDAO) GetForTests(ctx context.Context, idTests []int64, sinceID int64) ([]models.Result, error) {
	if len(idTests) == 0 {
		return nil, nil
	}
	var out []models.Result
	query, args, err := sqlx.In(
		`SELECT * FROM results WHERE id_test IN (?) AND id_result > ? ORDER BY id_result`, idTests, sinceID)
	if err != nil {
		return nil, apperrors.NewTransactionError("build multi-result query", err)
	}
	query = d.db.Rebind(query)
	if err := d.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, apperrors.NewTransactionError("list results for tests", err)
	}
	return out, nil
}

// MaxID returns the highest id_result currently stored, or 0 if empty; used
// as multi-result's last_checked_id.
func (d *ResultDAO) MaxID(ctx context.Context) (int64, error) {
	var max int64
	err := d.db.GetContext(ctx, &max, `SELECT coalesce(max(id_result), 0) FROM results`)
	if err != nil {
		return 0, apperrors.NewTransactionError("max result id", err)
	}
	return max, nil
}

// DeleteOldRecords removes Results finished before threshold seconds ago.
func (d *ResultDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM results WHERE finished < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old results", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns a RecordsCounter with one category per ResultStatus.
func (d *ResultDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	type row struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var rows []row
	err := d.db.SelectContext(ctx, &rows, `SELECT status, count(*) AS count FROM results GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewTransactionError("count results", err)
	}
	counter := NewRecordsCounter()
	for _, r := range rows {
		counter.Add(r.Status, r.Count)
	}
	return counter, nil
}
