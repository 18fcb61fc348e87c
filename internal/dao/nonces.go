package dao

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
)

// ErrNonceReused is returned by Record when the nonce is already present,
// the collision sentinel spec.md §5 calls out for replay detection.
var ErrNonceReused = errors.New("nonce already used")

// NonceDAO persists anti-replay records for the authorization layer.
type NonceDAO struct {
	db *sqlx.DB
}

// NewNonceDAO returns a NonceDAO bound to db.
func NewNonceDAO(db *sqlx.DB) *NonceDAO { return &NonceDAO{db: db} }

// Record inserts nonce if it is new, returning ErrNonceReused if a request
// already consumed it.
func (d *NonceDAO) Record(ctx context.Context, nonce string) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO nonces (nonce, used_at) VALUES ($1, now())`, nonce)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrNonceReused
		}
		return apperrors.NewTransactionError("record nonce", err)
	}
	return nil
}

// DeleteOldRecords removes Nonces older than threshold seconds. Must be
// called with cleaner.nonces_int, which config.Validate enforces is
// strictly greater than authorization.request_validity_int (spec.md §9).
func (d *NonceDAO) DeleteOldRecords(ctx context.Context, thresholdSeconds int64) (*RecordsCounter, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM nonces WHERE used_at < now() - ($1 || ' seconds')::interval`, thresholdSeconds)
	if err != nil {
		return nil, apperrors.NewTransactionError("delete old nonces", err)
	}
	n, _ := res.RowsAffected()
	counter := NewRecordsCounter()
	counter.Add("all", int(n))
	return counter, nil
}

// CountRecords returns the single "all" category count.
func (d *NonceDAO) CountRecords(ctx context.Context) (*RecordsCounter, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, `SELECT count(*) FROM nonces`); err != nil {
		return nil, apperrors.NewTransactionError("count nonces", err)
	}
	counter := NewRecordsCounter()
	counter.Add("all", n)
	return counter, nil
}
