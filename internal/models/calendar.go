package models

import "time"

// Request is a pending intent to mutate the calendar. Created by the API
// Server or the Tests Manager; consumed and deleted by the Calendar.
type Request struct {
	IDRequest       int64         `db:"id_request"`
	IDTest          int64         `db:"id_test"`
	Reason          RequestReason `db:"reason"`
	RecoveryAttempt int64         `db:"recovery_attempt"`
	AddedTime       time.Time     `db:"added_time"`
}

// Event is a scheduled future execution, consumed by the Tests Manager
// once its RunAt has passed.
type Event struct {
	IDEvent         int64       `db:"id_event"`
	IDTest          int64       `db:"id_test"`
	RunAt           time.Time   `db:"run_at"`
	Source          EventSource `db:"source"`
	RecoveryAttempt int64       `db:"recovery_attempt"`
}

// Run is a concrete attempt, materialized into OS process space by the
// Tests Manager.
type Run struct {
	IDRun   int64    `db:"id_run"`
	IDTest  int64    `db:"id_test"`
	Version int64    `db:"version"`
	State   RunState `db:"state"`

	PID *int `db:"pid"`

	Planned  time.Time  `db:"planned"`
	Started  *time.Time `db:"started"`
	Deadline *time.Time `db:"deadline"`

	RecoveryAttempt int64 `db:"recovery_attempt"`
}

// Result is the immutable outcome of a completed Run.
type Result struct {
	IDResult int64 `db:"id_result"`

	IDTest  int64 `db:"id_test"`
	Version int64 `db:"version"`

	Planned  time.Time `db:"planned"`
	Started  time.Time `db:"started"`
	Finished time.Time `db:"finished"`

	Status          ResultStatus `db:"status"`
	RecoveryAttempt int64        `db:"recovery_attempt"`
	Data            string       `db:"data"`
}
