package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// EventDAO persists scheduled future executions.
type EventDAO struct {
	db *sqlx.DB
}

// NewEventDAO returns an EventDAO bound to db.
func NewEventDAO(db *sqlx.DB) *EventDAO { return &EventDAO{db: db} }

// Create inserts a new Event, but only when the owning Test is enabled --
// the calendar enablement gate is enforced centrally here, at the DAO
// boundary, per spec.md §4.1 ("enforcement is central and applies to every
// insertion path"). Returns (nil, nil) when the gate rejected the insert.
func (d *EventDAO) Create(ctx context.Context, tx *sqlx.Tx, e *models.Event, state TxState) (*models.Event, error) {
	exec := resolve(d.db, tx)
	var out models.Event
	err := exec.GetContext(ctx, &out, `
		INSERT INTO events (id_test, run_at, source, recovery_attempt)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM tests WHERE id_test = $1 AND state = $5)
		RETURNING *`,
		e.IDTest, e.RunAt, e.Source, e.RecoveryAttempt, models.TestStateEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if ferr := finish(tx, state); ferr != nil {
				return nil, ferr
			}
			return nil, nil
		}
		return nil, apperrors.NewTransactionError("create event", err)
	}
	if err := finish(tx, state); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDue lists every Event whose RunAt has passed, the Calendar's
// planned-events-pipeline input.
func (d *EventDAO) GetDue(ctx context.Context, now time.Time) ([]models.Event, error) {
	var out []models.Event
	err := d.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE run_at <= $1 ORDER BY id_event`, now)
	if err != nil {
		return nil, apperrors.NewTransactionError("list due events", err)
	}
	return out, nil
}

// DeleteByTest removes every Event for idTest, used when a Test transitions
// to disabled or deleted.
func (d *EventDAO) DeleteByTest(ctx context.Context, tx *sqlx.Tx, idTest int64, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `DELETE FROM events WHERE id_test = $1`, idTest)
	if err != nil {
		return apperrors.NewTransactionError("delete events by test", err)
	}
	return finish(tx, state)
}

// Delete removes one Event, in the same transaction as the Run it spawns.
func (d *EventDAO) Delete(ctx context.Context, tx *sqlx.Tx, idEvent int64, state TxState) error {
	exec := resolve(d.db, tx)
	_, err := exec.ExecContext(ctx, `DELETE FROM events WHERE id_event = $1`, idEvent)
	if err != nil {
		return apperrors.NewTransactionError("delete event", err)
	}
	return finish(tx, state)
}

// GetByTest lists every planned Event for idTest.
func (d *EventDAO) GetByTest(ctx context.Context, idTest int64) ([]models.Event, error) {
	var out []models.Event
	err := d.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE id_test = $1 ORDER BY run_at`, idTest)
	if err != nil {
		return nil, apperrors.NewTransactionError("list events by test", err)
	}
	return out, nil
}

// DeleteOldRecords removes Events older than threshold seconds.
func (d *EventDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM events WHERE run_at < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old events", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category event count.
func (d *EventDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM events`); err != nil {
		return nil, apperrors.NewTransactionError("count events", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
