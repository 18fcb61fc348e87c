package dao

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
)

// StatsDAO persists the hourly table census produced by the Stats component.
type StatsDAO struct {
	db *sqlx.DB
}

// NewStatsDAO returns a StatsDAO bound to db.
func NewStatsDAO(db *sqlx.DB) *StatsDAO { return &StatsDAO{db: db} }

// Record inserts one Stats row per category in counter for table, all
// stamped with the same point in time.
func (d *StatsDAO) Record(ctx context.Context, at time.Time, table string, counter *RecordsCounter) error {
	var firstErr error
	counter.Iterate(func(category string, count int) {
		if firstErr != nil {
			return
		}
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO stats (time, table_name, category, value) VALUES ($1, $2, $3, $4)`,
			at, table, category, count)
		if err != nil {
			firstErr = apperrors.NewTransactionError("record stats", err)
		}
	})
	return firstErr
}

// DeleteOldRecords removes Stats rows older than threshold seconds.
func (d *StatsDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM stats WHERE time < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old stats", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}
