package dao

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// RequestDAO persists pending calendar mutations.
type RequestDAO struct {
	db *sqlx.DB
}

// NewRequestDAO returns a RequestDAO bound to db.
func NewRequestDAO(db *sqlx.DB) *RequestDAO { return &RequestDAO{db: db} }

// Create inserts a new Request. AddedTime defaults to now() at the store.
func (d *RequestDAO) Create(ctx context.Context, tx *sqlx.Tx, r *models.Request, state TxState) (*models.Request, error) {
	exec := resolve(d.db, tx)
	var out models.Request
	err := exec.GetContext(ctx, &out, `
		INSERT INTO requests (id_test, reason, recovery_attempt, added_time)
		VALUES ($1, $2, $3, now())
		RETURNING *`, r.IDTest, r.Reason, r.RecoveryAttempt)
	if err != nil {
		return nil, apperrors.NewTransactionError("create request", err)
	}
	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAll lists every unprocessed Request in insertion order, the Calendar's
// requests-pipeline input.
func (d *RequestDAO) GetAll(ctx context.Context) ([]models.Request, error) {
	var out []models.Request
	if err := d.db.SelectContext(ctx, &out, `SELECT * FROM requests ORDER BY id_request`); err != nil {
		return nil, apperrors.NewTransactionError("list requests", err)
	}
	return out, nil
}

// Delete removes a Request once the Calendar has turned it into zero or
// more Events.
func (d *RequestDAO) Delete(ctx context.Context, tx *sqlx.Tx, idRequest int64, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `DELETE FROM requests WHERE id_request = $1`, idRequest)
	if err != nil {
		return apperrors.NewTransactionError("delete request", err)
	}
	return finish(tx, state)
}

// DeleteOldRecords removes Requests older than threshold seconds.
func (d *RequestDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM requests WHERE added_time < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old requests", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category request count.
func (d *RequestDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM requests`); err != nil {
		return nil, apperrors.NewTransactionError("count requests", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
