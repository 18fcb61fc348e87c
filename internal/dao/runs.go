package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// ErrWaitingRunExists is returned by CreateWaiting when the test already has
// a Run in the waiting state -- the exactly-one-waiting invariant enforced
// by the runs_one_waiting_per_test partial unique index (spec.md §9,
// "waiting-run race").
var ErrWaitingRunExists = errors.New("a waiting run already exists for this test")

const pgUniqueViolation = "23505"

// RunDAO persists process-run attempts.
type RunDAO struct {
	db *sqlx.DB
}

// NewRunDAO returns a RunDAO bound to db.
func NewRunDAO(db *sqlx.DB) *RunDAO { return &RunDAO{db: db} }

// CreateWaiting inserts a new Run in state waiting, in the same transaction
// as the Event delete that triggered it. Relies on runs_one_waiting_per_test
// to reject a second concurrent waiting Run rather than on a read-then-write
// check, closing the race the original implementation only flagged. The
// conflict is absorbed by ON CONFLICT DO NOTHING rather than raised, so an
// enclosing transaction stays usable after ErrWaitingRunExists.
func (d *RunDAO) CreateWaiting(ctx context.Context, tx *sqlx.Tx, r *models.Run, state TxState) (*models.Run, error) {
	exec := resolve(d.db, tx)
	var out models.Run
	err := exec.GetContext(ctx, &out, `
		INSERT INTO runs (id_test, version, state, planned, recovery_attempt)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id_test) WHERE state = 'waiting' DO NOTHING
		RETURNING *`,
		r.IDTest, r.Version, models.RunStateWaiting, r.Planned, r.RecoveryAttempt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWaitingRunExists
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrWaitingRunExists
		}
		return nil, apperrors.NewTransactionError("create waiting run", err)
	}
	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByState lists every Run currently in runState, visited in id order by
// each Tests Manager pipeline step.
func (d *RunDAO) GetByState(ctx context.Context, runState models.RunState) ([]models.Run, error) {
	var out []models.Run
	err := d.db.SelectContext(ctx, &out, `SELECT * FROM runs WHERE state = $1 ORDER BY id_run`, runState)
	if err != nil {
		return nil, apperrors.NewTransactionError("list runs by state", err)
	}
	return out, nil
}

// GetByStateAndDeadline lists every Run in runState whose Deadline has
// passed as of before, the input to each Tests Manager escalation step
// (terminate/kill/zombify/check-zombies).
func (d *RunDAO) GetByStateAndDeadline(ctx context.Context, runState models.RunState, before time.Time) ([]models.Run, error) {
	var out []models.Run
	err := d.db.SelectContext(ctx, &out,
		`SELECT * FROM runs WHERE state = $1 AND deadline IS NOT NULL AND deadline <= $2 ORDER BY id_run`,
		runState, before)
	if err != nil {
		return nil, apperrors.NewTransactionError("list runs by state and deadline", err)
	}
	return out, nil
}

// Get fetches one Run by id.
func (d *RunDAO) Get(ctx context.Context, idRun int64) (*models.Run, error) {
	var r models.Run
	err := d.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE id_run = $1`, idRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewTransactionError("get run", err)
	}
	return &r, nil
}

// TransitionToRunning starts a waiting Run: state=running, PID, Started and
// Deadline all set in one UPDATE.
func (d *RunDAO) TransitionToRunning(ctx context.Context, tx *sqlx.Tx, idRun int64, pid int, started, deadline time.Time, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `
		UPDATE runs SET state = $1, pid = $2, started = $3, deadline = $4 WHERE id_run = $5`,
		models.RunStateRunning, pid, started, deadline, idRun)
	if err != nil {
		return apperrors.NewTransactionError("transition run to running", err)
	}
	return finish(tx, state)
}

// TransitionState moves a Run to newState with a new deadline, the shape
// shared by terminating, killing, and zombifying.
func (d *RunDAO) TransitionState(ctx context.Context, tx *sqlx.Tx, idRun int64, newState models.RunState, deadline time.Time, txState TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `UPDATE runs SET state = $1, deadline = $2 WHERE id_run = $3`, newState, deadline, idRun)
	if err != nil {
		return apperrors.NewTransactionError("transition run state", err)
	}
	return finish(tx, txState)
}

// Delete removes a Run once it has been harvested into a Result, or once a
// zombie is confirmed dead.
func (d *RunDAO) Delete(ctx context.Context, tx *sqlx.Tx, idRun int64, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `DELETE FROM runs WHERE id_run = $1`, idRun)
	if err != nil {
		return apperrors.NewTransactionError("delete run", err)
	}
	return finish(tx, state)
}

// GetByTest lists every Run for idTest, newest first.
func (d *RunDAO) GetByTest(ctx context.Context, idTest int64) ([]models.Run, error) {
	var out []models.Run
	err := d.db.SelectContext(ctx, &out, `SELECT * FROM runs WHERE id_test = $1 ORDER BY id_run DESC`, idTest)
	if err != nil {
		return nil, apperrors.NewTransactionError("list runs by test", err)
	}
	return out, nil
}

// DeleteOldRecords removes Runs planned before threshold seconds ago --
// used only as a safety net for Runs stuck past every escalation step.
func (d *RunDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM runs WHERE planned < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old runs", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns a RecordsCounter with one category per RunState.
func (d *RunDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	type row struct {
		State string `db:"state"`
		Count int    `db:"count"`
	}
	var rows []row
	err := d.db.SelectContext(ctx, &rows, `SELECT state, count(*) AS count FROM runs GROUP BY state`)
	if err != nil {
		return nil, apperrors.NewTransactionError("count runs", err)
	}
	counter := NewRecordsCounter()
	for _, r := range rows {
		counter.Add(r.State, r.Count)
	}
	return counter, nil
}
