package config

import "gopkg.in/ini.v1"

// PublicConfig holds settings the unauthenticated /system/config endpoint
// may expose.
type PublicConfig struct {
	AgentName string `ini:"agent_name"`
}

// APIConfig controls the HTTP API server. ListenIP is kept as a string and
// coerced with net.ParseIP by Validate, the idiomatic-Go analogue of the
// original's "_ip" type-suffix coercion (see spec.md §6).
type APIConfig struct {
	ListenIP   string `ini:"listen_ip"`
	ListenPort int    `ini:"listen_port"`
}

// AuthenticationConfig controls session-token minting and verification.
type AuthenticationConfig struct {
	Password         string `ini:"authentication_password"`
	TokenKey         string `ini:"token_key"`
	TokenValidityInt int    `ini:"token_validity_int"`
}

// AuthorizationConfig controls per-request HMAC verification.
type AuthorizationConfig struct {
	RootPassword        string `ini:"authorization_root_password"`
	NewTestsPassword     string `ini:"authorization_new_tests_password"`
	RequestValidityInt  int    `ini:"request_validity_int"`
	AllowDevBypassBool  bool   `ini:"allow_dev_bypass_bool"`
}

// TestsConfig controls the Tests Manager's process lifecycle escalation.
type TestsConfig struct {
	ProcessDeadlineTerminatingInt int `ini:"process_deadline_terminating_int"`
	ProcessDeadlineKillingInt     int `ini:"process_deadline_killing_int"`
	ProcessDeadlineZombieInt      int `ini:"process_deadline_zombie_int"`
}

// CleanerConfig controls the retention sweep and the nonce GC boundary.
type CleanerConfig struct {
	IntervalInt int `ini:"interval_int"`

	TestsRetentionInt     int `ini:"tests_retention_int"`
	RequestsRetentionInt  int `ini:"requests_retention_int"`
	EventsRetentionInt    int `ini:"events_retention_int"`
	RunsRetentionInt      int `ini:"runs_retention_int"`
	ResultsRetentionInt   int `ini:"results_retention_int"`
	OldParamsRetentionInt int `ini:"old_params_retention_int"`
	StatsRetentionInt     int `ini:"stats_retention_int"`
	NoncesInt             int `ini:"nonces_int"`
	MultiResultsRetentionInt int `ini:"multi_results_retention_int"`
	OrchestratorsRetentionInt int `ini:"orchestrators_retention_int"`
}

// ResponderConfig controls the optional UDP liveness responder. Both
// fields are blank by default, matching the original's "not configured,
// therefore not running" behavior rather than defaulting to a bound
// address.
type ResponderConfig struct {
	IP   string `ini:"ip"`
	Port int    `ini:"port"`
}

// LoggingConfig controls the two append-only log sinks.
type LoggingConfig struct {
	Level             string `ini:"level"`
	DebugLogFile      string `ini:"debug_log_file"`
	AccountingLogFile string `ini:"accounting_log_file"`

	// APIMaxLogsSizeInt caps the max_size a /system/logs or
	// /system/accounting caller may request, in bytes.
	APIMaxLogsSizeInt int `ini:"api_max_logs_size_int"`
}

// DatabaseConfig controls the PostgreSQL connection pool. It is not part
// of spec.md's config section list but is required ambient plumbing; kept
// small and placed under its own section ("database") in config.ini.
type DatabaseConfig struct {
	Host            string `ini:"host"`
	PortPort        int    `ini:"port_port"`
	User            string `ini:"user"`
	Password        string `ini:"password"`
	Database        string `ini:"database"`
	SSLMode         string `ini:"sslmode"`
	MaxOpenConnsInt int    `ini:"max_open_conns_int"`
	MaxIdleConnsInt int    `ini:"max_idle_conns_int"`
}

// Config is the fully parsed, typed configuration file.
type Config struct {
	Public         PublicConfig
	API            APIConfig
	Authentication AuthenticationConfig
	Authorization  AuthorizationConfig
	Tests          TestsConfig
	Cleaner        CleanerConfig
	Responder      ResponderConfig
	Logging        LoggingConfig
	Database       DatabaseConfig

	// raw keeps the parsed ini file alive past Load so /system/config can
	// dump and mutate sections generically instead of duplicating a
	// section/option list that's already expressed as struct tags above.
	raw *ini.File
}
