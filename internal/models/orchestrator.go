package models

import "time"

// Orchestrator is an external control-plane client seen by the API Server.
type Orchestrator struct {
	Name     string    `db:"name"`
	LastSeen time.Time `db:"last_seen"`
}

// Nonce is a single-use identifier that prevents HMAC replay. A unique
// constraint on Nonce is the collision sentinel used to detect reuse.
type Nonce struct {
	Nonce  string    `db:"nonce"`
	UsedAt time.Time `db:"used_at"`
}

// MultiResult maps one orchestrator-scoped key to a set of test ids, so an
// orchestrator can fetch results across many tests with one call. Member
// test ids are stored as a first-class collection; the API boundary still
// renders/accepts them as a comma-separated string for backward
// compatibility (see SPEC_FULL.md, open question on multi-result storage).
type MultiResult struct {
	IDMultiResult    int64     `db:"id_multi_result"`
	OrchestratorName string    `db:"orchestrator_name"`
	TestIDs          IntArray  `db:"test_ids"`
	Key              string    `db:"key"`
	LastUsedTime     time.Time `db:"last_used_time"`
}

// Stats is a point-in-time census row produced by the Stats component.
type Stats struct {
	Time     time.Time `db:"time"`
	Table    string    `db:"table_name"`
	Category string    `db:"category"`
	Value    int64     `db:"value"`
}
