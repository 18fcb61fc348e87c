package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// TestDAO persists Test definitions and their historical parameters.
type TestDAO struct {
	db *sqlx.DB
}

// NewTestDAO returns a TestDAO bound to db.
func NewTestDAO(db *sqlx.DB) *TestDAO { return &TestDAO{db: db} }

// Create inserts a new Test. The caller supplies Version (normally 1),
// Created, and the generated authorization keys.
func (d *TestDAO) Create(ctx context.Context, tx *sqlx.Tx, t *models.Test, state TxState) (*models.Test, error) {
	exec := resolve(d.db, tx)
	var id int64
	err := exec.GetContext(ctx, &id, `
		INSERT INTO tests (
			name, description, version, state, test_params, timeout,
			scheduling_interval, scheduling_from, scheduling_until,
			recovery_interval, recovery_attempt_limit, key_ro, key_rw, created
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING id_test`,
		t.Name, t.Description, t.Version, t.State, t.TestParams, t.Timeout,
		t.SchedulingInterval, t.SchedulingFrom, t.SchedulingUntil,
		t.RecoveryInterval, t.RecoveryAttemptLimit, t.KeyRO, t.KeyRW, t.Created)
	if err != nil {
		return nil, apperrors.NewTransactionError("create test", err)
	}
	t.IDTest = id

	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return t, nil
}

// Get fetches one Test by id.
func (d *TestDAO) Get(ctx context.Context, idTest int64) (*models.Test, error) {
	var t models.Test
	err := d.db.GetContext(ctx, &t, `SELECT * FROM tests WHERE id_test = $1`, idTest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewTransactionError("get test", err)
	}
	return &t, nil
}

// GetAll lists every Test, regardless of state.
func (d *TestDAO) GetAll(ctx context.Context) ([]models.Test, error) {
	var out []models.Test
	if err := d.db.SelectContext(ctx, &out, `SELECT * FROM tests ORDER BY id_test`); err != nil {
		return nil, apperrors.NewTransactionError("list tests", err)
	}
	return out, nil
}

// GetAllEnabled lists every Test currently in the enabled state.
func (d *TestDAO) GetAllEnabled(ctx context.Context) ([]models.Test, error) {
	var out []models.Test
	err := d.db.SelectContext(ctx, &out, `SELECT * FROM tests WHERE state = $1 ORDER BY id_test`, models.TestStateEnabled)
	if err != nil {
		return nil, apperrors.NewTransactionError("list enabled tests", err)
	}
	return out, nil
}

// UpdateParams bumps Version, stores the prior TestParams as an OldParams
// row, and writes the new TestParams -- one logical operation spanning two
// tables, always run inside an explicit transaction by the caller.
func (d *TestDAO) UpdateParams(ctx context.Context, tx *sqlx.Tx, idTest int64, newParams string, state TxState) (*models.Test, error) {
	exec := resolve(d.db, tx)

	current, err := d.Get(ctx, idTest)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NewTransactionError("update test params", errors.New("test not found"))
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO old_params (id_test, version, test_params, changed)
		VALUES ($1, $2, $3, now())`, current.IDTest, current.Version, current.TestParams)
	if err != nil {
		return nil, apperrors.NewTransactionError("archive old params", err)
	}

	current.Version++
	current.TestParams = newParams
	_, err = exec.ExecContext(ctx, `
		UPDATE tests SET version = $1, test_params = $2 WHERE id_test = $3`,
		current.Version, current.TestParams, current.IDTest)
	if err != nil {
		return nil, apperrors.NewTransactionError("update test params", err)
	}

	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return current, nil
}

// Update writes every mutable field of t (description, state, timeout,
// scheduling window, recovery policy) -- everything PATCH /test/{id} may
// change except name, version, and the authorization keys, which are
// immutable after creation. Version and test_params are handled
// separately by UpdateParams, since they archive the prior value.
func (d *TestDAO) Update(ctx context.Context, tx *sqlx.Tx, t *models.Test, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `
		UPDATE tests SET
			description = $1, state = $2, timeout = $3,
			scheduling_interval = $4, scheduling_from = $5, scheduling_until = $6,
			recovery_interval = $7, recovery_attempt_limit = $8
		WHERE id_test = $9`,
		t.Description, t.State, t.Timeout,
		t.SchedulingInterval, t.SchedulingFrom, t.SchedulingUntil,
		t.RecoveryInterval, t.RecoveryAttemptLimit, t.IDTest)
	if err != nil {
		return apperrors.NewTransactionError("update test", err)
	}
	return finish(tx, state)
}

// UpdateState sets a Test's lifecycle state.
func (d *TestDAO) UpdateState(ctx context.Context, tx *sqlx.Tx, idTest int64, newState models.TestState, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `UPDATE tests SET state = $1 WHERE id_test = $2`, newState, idTest)
	if err != nil {
		return apperrors.NewTransactionError("update test state", err)
	}
	return finish(tx, state)
}

// RecordResult updates the denormalized last-result columns on a Test,
// written inside the Tests Manager's harvest transaction and as the final
// write of its terminate transaction.
func (d *TestDAO) RecordResult(ctx context.Context, tx *sqlx.Tx, idTest int64, at interface{}, status models.ResultStatus, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `
		UPDATE tests SET last_result_time = $1, last_result_status = $2 WHERE id_test = $3`,
		at, string(status), idTest)
	if err != nil {
		return apperrors.NewTransactionError("record test result", err)
	}
	return finish(tx, state)
}

// RecordStarted stamps last_started_time, called when a Run transitions
// from waiting to running.
func (d *TestDAO) RecordStarted(ctx context.Context, tx *sqlx.Tx, idTest int64, at interface{}, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `UPDATE tests SET last_started_time = $1 WHERE id_test = $2`, at, idTest)
	if err != nil {
		return apperrors.NewTransactionError("record test started", err)
	}
	return finish(tx, state)
}

// RecordDownloaded stamps last_downloaded_time, called when an orchestrator
// fetches a Test's results, directly or through a multi-result aggregator.
func (d *TestDAO) RecordDownloaded(ctx context.Context, idTest int64, at interface{}) error {
	_, err := d.db.ExecContext(ctx, `UPDATE tests SET last_downloaded_time = $1 WHERE id_test = $2`, at, idTest)
	if err != nil {
		return apperrors.NewTransactionError("record test downloaded", err)
	}
	return nil
}

// GetOldParams lists every historical parameter snapshot for idTest, or
// just the one matching version when version is non-nil.
func (d *TestDAO) GetOldParams(ctx context.Context, idTest int64, version *int64) ([]models.OldParams, error) {
	var out []models.OldParams
	var err error
	if version != nil {
		err = d.db.SelectContext(ctx, &out,
			`SELECT * FROM old_params WHERE id_test = $1 AND version = $2 ORDER BY version`, idTest, *version)
	} else {
		err = d.db.SelectContext(ctx, &out,
			`SELECT * FROM old_params WHERE id_test = $1 ORDER BY version`, idTest)
	}
	if err != nil {
		return nil, apperrors.NewTransactionError("list old params", err)
	}
	return out, nil
}

// DeleteOldRecords removes Tests older than threshold seconds, keyed on
// Created, as part of Cleaner's retention sweep.
func (d *TestDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM tests WHERE created < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old tests", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns a RecordsCounter with one category per TestState.
func (d *TestDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	type row struct {
		State string `db:"state"`
		Count int    `db:"count"`
	}
	var rows []row
	err := d.db.SelectContext(ctx, &rows, `SELECT state, count(*) AS count FROM tests GROUP BY state`)
	if err != nil {
		return nil, apperrors.NewTransactionError("count tests", err)
	}
	counter := NewRecordsCounter()
	for _, r := range rows {
		counter.Add(r.State, r.Count)
	}
	return counter, nil
}
