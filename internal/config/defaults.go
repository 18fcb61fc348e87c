package config

import "time"

// Default values applied to options absent from config.ini. Mirrors
// original_source/.../utils/configuration.py's optional-option handling:
// a missing option falls back to one of these rather than failing load.
const (
	defaultAPIListenPort = 8443

	defaultTokenValidity     = int(12 * time.Hour / time.Second)
	defaultRequestValidity   = 60 // seconds, per spec.md §4.4

	defaultProcessDeadlineTerminating = 10 // seconds
	defaultProcessDeadlineKilling     = 10
	defaultProcessDeadlineZombie      = 10

	defaultCleanerInterval = 3600 // seconds

	defaultTestsRetention     = int(90 * 24 * time.Hour / time.Second)
	defaultRequestsRetention  = int(7 * 24 * time.Hour / time.Second)
	defaultEventsRetention    = int(7 * 24 * time.Hour / time.Second)
	defaultRunsRetention      = int(7 * 24 * time.Hour / time.Second)
	defaultResultsRetention   = int(90 * 24 * time.Hour / time.Second)
	defaultOldParamsRetention = int(90 * 24 * time.Hour / time.Second)
	defaultStatsRetention     = int(365 * 24 * time.Hour / time.Second)
	defaultMultiResultsRetention  = int(90 * 24 * time.Hour / time.Second)
	defaultOrchestratorsRetention = int(90 * 24 * time.Hour / time.Second)

	// Must stay strictly greater than defaultRequestValidity (spec.md §9,
	// "nonce GC boundary"), enforced again at runtime by Validate.
	defaultNonceTTL = 300 // seconds

	defaultLogLevel          = "info"
	defaultDebugLogFile      = "agent.log"
	defaultAccountingLogFile = "accounting.log"
	defaultAPIMaxLogsSize    = 10 * 1024 * 1024 // bytes

	defaultDBPort            = 5432
	defaultDBSSLMode         = "disable"
	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 5
)

func applyDefaults(c *Config) {
	if c.API.ListenIP == "" {
		c.API.ListenIP = "0.0.0.0"
	}
	if c.API.ListenPort == 0 {
		c.API.ListenPort = defaultAPIListenPort
	}
	if c.Authentication.TokenValidityInt == 0 {
		c.Authentication.TokenValidityInt = defaultTokenValidity
	}
	if c.Authorization.RequestValidityInt == 0 {
		c.Authorization.RequestValidityInt = defaultRequestValidity
	}
	if c.Tests.ProcessDeadlineTerminatingInt == 0 {
		c.Tests.ProcessDeadlineTerminatingInt = defaultProcessDeadlineTerminating
	}
	if c.Tests.ProcessDeadlineKillingInt == 0 {
		c.Tests.ProcessDeadlineKillingInt = defaultProcessDeadlineKilling
	}
	if c.Tests.ProcessDeadlineZombieInt == 0 {
		c.Tests.ProcessDeadlineZombieInt = defaultProcessDeadlineZombie
	}
	if c.Cleaner.IntervalInt == 0 {
		c.Cleaner.IntervalInt = defaultCleanerInterval
	}
	if c.Cleaner.TestsRetentionInt == 0 {
		c.Cleaner.TestsRetentionInt = defaultTestsRetention
	}
	if c.Cleaner.RequestsRetentionInt == 0 {
		c.Cleaner.RequestsRetentionInt = defaultRequestsRetention
	}
	if c.Cleaner.EventsRetentionInt == 0 {
		c.Cleaner.EventsRetentionInt = defaultEventsRetention
	}
	if c.Cleaner.RunsRetentionInt == 0 {
		c.Cleaner.RunsRetentionInt = defaultRunsRetention
	}
	if c.Cleaner.ResultsRetentionInt == 0 {
		c.Cleaner.ResultsRetentionInt = defaultResultsRetention
	}
	if c.Cleaner.OldParamsRetentionInt == 0 {
		c.Cleaner.OldParamsRetentionInt = defaultOldParamsRetention
	}
	if c.Cleaner.StatsRetentionInt == 0 {
		c.Cleaner.StatsRetentionInt = defaultStatsRetention
	}
	if c.Cleaner.NoncesInt == 0 {
		c.Cleaner.NoncesInt = defaultNonceTTL
	}
	if c.Cleaner.MultiResultsRetentionInt == 0 {
		c.Cleaner.MultiResultsRetentionInt = defaultMultiResultsRetention
	}
	if c.Cleaner.OrchestratorsRetentionInt == 0 {
		c.Cleaner.OrchestratorsRetentionInt = defaultOrchestratorsRetention
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.DebugLogFile == "" {
		c.Logging.DebugLogFile = defaultDebugLogFile
	}
	if c.Logging.AccountingLogFile == "" {
		c.Logging.AccountingLogFile = defaultAccountingLogFile
	}
	if c.Logging.APIMaxLogsSizeInt == 0 {
		c.Logging.APIMaxLogsSizeInt = defaultAPIMaxLogsSize
	}
	if c.Database.PortPort == 0 {
		c.Database.PortPort = defaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultDBSSLMode
	}
	if c.Database.MaxOpenConnsInt == 0 {
		c.Database.MaxOpenConnsInt = defaultDBMaxOpenConns
	}
	if c.Database.MaxIdleConnsInt == 0 {
		c.Database.MaxIdleConnsInt = defaultDBMaxIdleConns
	}
}
