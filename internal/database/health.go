package database

import (
	"context"
	"database/sql"
)

// Health is the JSON-friendly result of a liveness check against the pool.
type Health struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Ping checks that the database is reachable within ctx's deadline.
func Ping(ctx context.Context, db *sql.DB) Health {
	if err := db.PingContext(ctx); err != nil {
		return Health{Reachable: false, Error: err.Error()}
	}
	return Health{Reachable: true}
}
