package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// MultiResultDAO persists orchestrator-scoped result aggregation handles.
type MultiResultDAO struct {
	db *sqlx.DB
}

// NewMultiResultDAO returns a MultiResultDAO bound to db.
func NewMultiResultDAO(db *sqlx.DB) *MultiResultDAO { return &MultiResultDAO{db: db} }

// Init creates (or replaces) the aggregator for orchestratorName with an
// empty member set, returning its id and key.
func (d *MultiResultDAO) Init(ctx context.Context, orchestratorName, key string) (*models.MultiResult, error) {
	var out models.MultiResult
	err := d.db.GetContext(ctx, &out, `
		INSERT INTO multi_results (orchestrator_name, test_ids, key, last_used_time)
		VALUES ($1, '{}', $2, now())
		ON CONFLICT (orchestrator_name) DO UPDATE SET key = EXCLUDED.key, test_ids = '{}', last_used_time = now()
		RETURNING *`, orchestratorName, key)
	if err != nil {
		return nil, apperrors.NewTransactionError("init multi-result", err)
	}
	return &out, nil
}

// Get fetches one MultiResult by id.
func (d *MultiResultDAO) Get(ctx context.Context, idMultiResult int64) (*models.MultiResult, error) {
	var out models.MultiResult
	err := d.db.GetContext(ctx, &out, `SELECT * FROM multi_results WHERE id_multi_result = $1`, idMultiResult)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewTransactionError("get multi-result", err)
	}
	return &out, nil
}

// AddTest appends idTest to the aggregator's member set if not already
// present, and stamps last_used_time.
func (d *MultiResultDAO) AddTest(ctx context.Context, idMultiResult, idTest int64) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE multi_results
		SET test_ids = CASE WHEN $2 = ANY(test_ids) THEN test_ids ELSE array_append(test_ids, $2) END,
		    last_used_time = now()
		WHERE id_multi_result = $1`, idMultiResult, idTest)
	if err != nil {
		return apperrors.NewTransactionError("add test to multi-result", err)
	}
	return nil
}

// Touch stamps last_used_time, called on every read so GetForTests's
// aggregation stays fresh for retention purposes.
func (d *MultiResultDAO) Touch(ctx context.Context, idMultiResult int64) error {
	_, err := d.db.ExecContext(ctx, `UPDATE multi_results SET last_used_time = now() WHERE id_multi_result = $1`, idMultiResult)
	if err != nil {
		return apperrors.NewTransactionError("touch multi-result", err)
	}
	return nil
}

// DeleteOldRecords removes MultiResults unused for threshold seconds.
func (d *MultiResultDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM multi_results WHERE last_used_time < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old multi-results", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category count.
func (d *MultiResultDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM multi_results`); err != nil {
		return nil, apperrors.NewTransactionError("count multi-results", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
