package dao

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Set bundles one DAO per entity so callers needing several (Calendar,
// Tests Manager, the API handlers, Cleaner, Stats) can be constructed from
// a single *sqlx.DB without repeating the wiring.
type Set struct {
	Tests        *TestDAO
	Requests     *RequestDAO
	Events       *EventDAO
	Runs         *RunDAO
	Results      *ResultDAO
	OldParams    *OldParamsDAO
	MultiResults *MultiResultDAO
	Orchestrators *OrchestratorDAO
	Nonces       *NonceDAO
	Stats        *StatsDAO

	db *sqlx.DB
}

// NewSet builds a Set bound to db.
func NewSet(db *sqlx.DB) *Set {
	return &Set{
		Tests:         NewTestDAO(db),
		Requests:      NewRequestDAO(db),
		Events:        NewEventDAO(db),
		Runs:          NewRunDAO(db),
		Results:       NewResultDAO(db),
		OldParams:     NewOldParamsDAO(db),
		MultiResults:  NewMultiResultDAO(db),
		Orchestrators: NewOrchestratorDAO(db),
		Nonces:        NewNonceDAO(db),
		Stats:         NewStatsDAO(db),
		db:            db,
	}
}

// Begin starts a transaction for callers chaining several DAO calls with
// TxContinue/TxFinish.
func (s *Set) Begin(ctx context.Context) (*sqlx.Tx, error) {
	return Begin(ctx, s.db)
}
