package models

import "time"

// Test is a user-visible monitoring definition: a probe name, its opaque
// parameters, a schedule window and a recovery policy.
type Test struct {
	IDTest int64 `db:"id_test"`

	Name        string `db:"name"`
	Description string `db:"description"`

	// Version increases by one every time TestParams changes. The previous
	// value is preserved in the old_params table for that version.
	Version int64 `db:"version"`

	State      TestState `db:"state"`
	TestParams string    `db:"test_params"`

	Timeout int64 `db:"timeout"` // seconds

	SchedulingInterval *int64     `db:"scheduling_interval"`
	SchedulingFrom     *time.Time `db:"scheduling_from"`
	SchedulingUntil    *time.Time `db:"scheduling_until"`

	RecoveryInterval      *int64 `db:"recovery_interval"`
	RecoveryAttemptLimit  *int64 `db:"recovery_attempt_limit"`

	KeyRO string `db:"key_ro"`
	KeyRW string `db:"key_rw"`

	Created           time.Time  `db:"created"`
	LastStartedTime   *time.Time `db:"last_started_time"`
	LastResultTime    *time.Time `db:"last_result_time"`
	LastResultStatus  *string    `db:"last_result_status"`
	LastDownloadedTime *time.Time `db:"last_downloaded_time"`
}

// OldParams is a historical snapshot of a Test's parameters for one version.
type OldParams struct {
	IDTest     int64     `db:"id_test"`
	Version    int64     `db:"version"`
	TestParams string    `db:"test_params"`
	Changed    time.Time `db:"changed"`
}
