package config

import "time"

// Default values for configuration fields.
const (
	// Agent defaults
	DefaultSubject           = "the candidate"
	DefaultAuditTail         = 3
	DefaultThoughtChainLimit = 50
	DefaultTemperature       = float32(0.4)
	DefaultMaxOutputTokens   = 2048

	// Generation defaults
	DefaultProvider          = "gemini"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultGenerationTimeout = 30 * time.Second

	// Knowledge defaults
	DefaultDocumentPath = "data/resume.txt"

	// Governance defaults
	DefaultWatchDebounce = 200 * time.Millisecond

	// Session defaults
	DefaultSessionBackend     = "sqlite"
	DefaultSessionSQLitePath  = "data/sessions.db"
	DefaultSessionBusyTimeout = 5 * time.Second
	DefaultSessionWALMode     = true
	DefaultRedisURL           = "redis://localhost:6379/0"
	DefaultRedisKeyPrefix     = "atlas:session:"

	// Evidence defaults
	DefaultEvidenceEnabled              = true
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteWALMode        = true
	DefaultEvidenceSQLiteBusyTimeout    = 5 * time.Second
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRecorderMaxFieldLen  = 500
	DefaultEvidenceRetentionDays        = 90
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"
	DefaultEvidenceRetentionArchivePath = "data/archives/"

	// Lead defaults
	DefaultLeadsEnabled     = true
	DefaultLeadsSQLitePath  = "data/leads.db"
	DefaultLeadsBusyTimeout = 5 * time.Second

	// Notification defaults
	DefaultResendTimeout = 10 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedactPII   = true
	DefaultMetricsEnabled     = true
	DefaultMetricsNamespace   = "atlas"
	DefaultTracingServiceName = "atlas-g"
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0

	// Secrets defaults
	DefaultSecretsEnvPrefix = "ATLAS_SECRET_"
)

// Default returns a configuration with every default applied, including the
// boolean switches that default to true. LoadConfig decodes YAML on top of
// it, so a file that omits a switch keeps its default and a file that sets
// it to false is honoured.
func Default() *Config {
	cfg := &Config{}
	cfg.Sessions.SQLite.WALMode = DefaultSessionWALMode
	cfg.Evidence.Enabled = DefaultEvidenceEnabled
	cfg.Evidence.SQLite.WALMode = DefaultEvidenceSQLiteWALMode
	cfg.Leads.Enabled = DefaultLeadsEnabled
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	// Agent defaults
	if cfg.Agent.Subject == "" {
		cfg.Agent.Subject = DefaultSubject
	}
	if cfg.Agent.AuditTail == 0 {
		cfg.Agent.AuditTail = DefaultAuditTail
	}
	if cfg.Agent.ThoughtChainLimit == 0 {
		cfg.Agent.ThoughtChainLimit = DefaultThoughtChainLimit
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = DefaultTemperature
	}
	if cfg.Agent.MaxOutputTokens == 0 {
		cfg.Agent.MaxOutputTokens = DefaultMaxOutputTokens
	}

	// Generation defaults
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = DefaultProvider
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case "openai":
			cfg.Generation.Model = DefaultOpenAIModel
		case "gemini":
			cfg.Generation.Model = DefaultGeminiModel
		}
	}
	if cfg.Generation.ClassifierModel == "" {
		cfg.Generation.ClassifierModel = cfg.Generation.Model
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = DefaultGenerationTimeout
	}

	if cfg.Knowledge.DocumentPath == "" {
		cfg.Knowledge.DocumentPath = DefaultDocumentPath
	}

	if cfg.Governance.WatchDebounce == 0 {
		cfg.Governance.WatchDebounce = DefaultWatchDebounce
	}

	// Session defaults
	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = DefaultSessionBackend
	}
	if cfg.Sessions.SQLite.Path == "" {
		cfg.Sessions.SQLite.Path = DefaultSessionSQLitePath
	}
	if cfg.Sessions.SQLite.BusyTimeout == 0 {
		cfg.Sessions.SQLite.BusyTimeout = DefaultSessionBusyTimeout
	}
	if cfg.Sessions.Redis.URL == "" {
		cfg.Sessions.Redis.URL = DefaultRedisURL
	}
	if cfg.Sessions.Redis.KeyPrefix == "" {
		cfg.Sessions.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Evidence defaults
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	if cfg.Evidence.SQLite.Path == "" {
		cfg.Evidence.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if cfg.Evidence.SQLite.MaxIdleConns == 0 {
		cfg.Evidence.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	if cfg.Evidence.SQLite.BusyTimeout == 0 {
		cfg.Evidence.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if cfg.Evidence.Recorder.AsyncBuffer == 0 {
		cfg.Evidence.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if cfg.Evidence.Recorder.WriteTimeout == 0 {
		cfg.Evidence.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if cfg.Evidence.Recorder.MaxFieldLength == 0 {
		cfg.Evidence.Recorder.MaxFieldLength = DefaultEvidenceRecorderMaxFieldLen
	}
	if cfg.Evidence.Retention.Days == 0 {
		cfg.Evidence.Retention.Days = DefaultEvidenceRetentionDays
	}
	if cfg.Evidence.Retention.PruneSchedule == "" {
		cfg.Evidence.Retention.PruneSchedule = DefaultEvidenceRetentionSchedule
	}
	if cfg.Evidence.Retention.ArchivePath == "" {
		cfg.Evidence.Retention.ArchivePath = DefaultEvidenceRetentionArchivePath
	}

	// Lead defaults
	if cfg.Leads.SQLitePath == "" {
		cfg.Leads.SQLitePath = DefaultLeadsSQLitePath
	}
	if cfg.Leads.BusyTimeout == 0 {
		cfg.Leads.BusyTimeout = DefaultLeadsBusyTimeout
	}
	if cfg.Notifications.Resend.Timeout == 0 {
		cfg.Notifications.Resend.Timeout = DefaultResendTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}
