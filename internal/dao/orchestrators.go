package dao

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
)

// OrchestratorDAO tracks control-plane clients seen by the API Server.
type OrchestratorDAO struct {
	db *sqlx.DB
}

// NewOrchestratorDAO returns an OrchestratorDAO bound to db.
func NewOrchestratorDAO(db *sqlx.DB) *OrchestratorDAO { return &OrchestratorDAO{db: db} }

// Touch records that name was just seen, creating the row on first contact
// and bumping last_seen otherwise -- the upsert exploiting the unique
// constraint on orchestrators.name called out in spec.md §5.
func (d *OrchestratorDAO) Touch(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO orchestrators (name, last_seen) VALUES ($1, now())
		ON CONFLICT (name) DO UPDATE SET last_seen = now()`, name)
	if err != nil {
		return apperrors.NewTransactionError("touch orchestrator", err)
	}
	return nil
}

// OrchestratorRow is one row of the orchestrators table.
type OrchestratorRow struct {
	Name     string    `db:"name"`
	LastSeen time.Time `db:"last_seen"`
}

// GetAll lists every Orchestrator, most recently seen first.
func (d *OrchestratorDAO) GetAll(ctx context.Context) ([]OrchestratorRow, error) {
	var out []OrchestratorRow
	err := d.db.SelectContext(ctx, &out, `SELECT name, last_seen FROM orchestrators ORDER BY last_seen DESC`)
	if err != nil {
		return nil, apperrors.NewTransactionError("list orchestrators", err)
	}
	return out, nil
}

// DeleteOldRecords removes Orchestrators not seen for thresholdSeconds, as
// part of Cleaner's retention sweep.
func (d *OrchestratorDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM orchestrators WHERE last_seen < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old orchestrators", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category count.
func (d *OrchestratorDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM orchestrators`); err != nil {
		return nil, apperrors.NewTransactionError("count orchestrators", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
