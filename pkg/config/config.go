package config

import "time"

// Config is the root configuration structure for the Atlas-G agent.
// It contains the agent persona, the generation provider, the trusted
// document, governance tables, storage backends and telemetry settings.
type Config struct {
	// Agent contains the persona, context layers and per-turn limits.
	Agent AgentConfig `yaml:"agent"`

	// Generation selects the hosted model used for classification and
	// response streaming.
	Generation GenerationConfig `yaml:"generation"`

	// Knowledge points at the trusted document.
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Governance configures the heuristic pattern tables.
	Governance GovernanceConfig `yaml:"governance"`

	// Sessions selects the session store backend.
	Sessions SessionsConfig `yaml:"sessions"`

	// Evidence contains configuration for per-turn audit records including
	// backend selection and retention.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Leads configures the contact lead store.
	Leads LeadsConfig `yaml:"leads"`

	// Notifications configures owner alerts for captured leads.
	Notifications NotificationsConfig `yaml:"notifications"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:name} references.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where ${secret:name} references are looked up.
// Environment variables are consulted before files.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name.
	// Default: "ATLAS_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Empty disables file lookup.
	Dir string `yaml:"dir"`
}

// AgentConfig configures the orchestrator.
type AgentConfig struct {
	// Subject is the name of the person the agent represents. It is used in
	// the classifier prompt and lead notifications.
	// Default: "the candidate"
	Subject string `yaml:"subject"`

	// Persona overrides the built-in core system prompt when non-empty.
	Persona string `yaml:"persona"`

	// AuditTail is the number of trailing audit entries emitted after the
	// response streams.
	// Default: 3
	AuditTail int `yaml:"audit_tail"`

	// ThoughtChainLimit caps the per-session thought chain. Oldest steps are
	// dropped first.
	// Default: 50
	ThoughtChainLimit int `yaml:"thought_chain_limit"`

	// Temperature is the sampling temperature for response generation.
	// Default: 0.4
	Temperature float32 `yaml:"temperature"`

	// MaxOutputTokens caps the generated response length.
	// Default: 2048
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// TurnTimeout bounds one full turn. Zero means no limit.
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// ContextLayers are keyword-triggered additions to the system prompt.
	// When empty the built-in layers are used.
	ContextLayers []ContextLayerConfig `yaml:"context_layers"`

	// DomainRules map query keywords to a sticky domain label.
	// When empty the built-in rules are used.
	DomainRules []DomainRuleConfig `yaml:"domain_rules"`

	// RateLimit bounds turns per session. Zero values disable a window.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig sets per-session turn budgets.
type RateLimitConfig struct {
	TurnsPerMinute int `yaml:"turns_per_minute"`
	TurnsPerHour   int `yaml:"turns_per_hour"`
}

// ContextLayerConfig is one keyword-triggered system prompt layer.
type ContextLayerConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Prompt   string   `yaml:"prompt"`
}

// DomainRuleConfig assigns Label when any keyword occurs in a query.
type DomainRuleConfig struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// GenerationConfig selects the generation provider.
type GenerationConfig struct {
	// Provider is "gemini" or "openai".
	// Default: "gemini"
	Provider string `yaml:"provider"`

	// APIKey authenticates with the provider. Usually supplied through
	// GOOGLE_API_KEY or OPENAI_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint (openai only).
	BaseURL string `yaml:"base_url"`

	// Model is used for streamed responses.
	// Default: "gemini-2.0-flash" for gemini, "gpt-4o-mini" for openai
	Model string `yaml:"model"`

	// ClassifierModel is used for intent classification. Defaults to Model.
	ClassifierModel string `yaml:"classifier_model"`

	// Timeout bounds a single classification call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// KnowledgeConfig locates the trusted document.
type KnowledgeConfig struct {
	// DocumentPath is the plain-text trusted document.
	// Default: "data/resume.txt"
	DocumentPath string `yaml:"document_path"`
}

// GovernanceConfig configures the heuristic pattern tables.
type GovernanceConfig struct {
	// PatternsFile replaces the built-in tables when set.
	PatternsFile string `yaml:"patterns_file"`

	// WatchPatterns reloads PatternsFile when it changes on disk.
	// Default: false
	WatchPatterns bool `yaml:"watch_patterns"`

	// WatchDebounce is the quiet period before a reload.
	// Default: 200ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// SessionsConfig selects the session store.
type SessionsConfig struct {
	// Backend is "memory", "sqlite" or "redis".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite SessionSQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig         `yaml:"redis"`
}

// SessionSQLiteConfig configures the SQLite session store.
type SessionSQLiteConfig struct {
	// Default: "data/sessions.db"
	Path string `yaml:"path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Default: true
	WALMode bool `yaml:"wal_mode"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	// Default: "redis://localhost:6379/0"
	URL string `yaml:"url"`

	// KeyPrefix is prepended to session ids.
	// Default: "atlas:session:"
	KeyPrefix string `yaml:"key_prefix"`

	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`
}

// EvidenceConfig contains configuration for evidence recording and storage.
type EvidenceConfig struct {
	// Enabled turns evidence recording on or off.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite    EvidenceSQLiteConfig `yaml:"sqlite"`
	Recorder  RecorderConfig       `yaml:"recorder"`
	Retention RetentionConfig      `yaml:"retention"`
}

// EvidenceSQLiteConfig configures the SQLite evidence backend.
type EvidenceSQLiteConfig struct {
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig configures the asynchronous evidence recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the record queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFieldLength truncates stored query text.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`
}

// RetentionConfig configures evidence pruning.
type RetentionConfig struct {
	// Days is the number of days to retain evidence. A negative value
	// disables age-based pruning.
	// Default: 90
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned records to ArchivePath first.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the number of stored records. Zero means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// LeadsConfig configures lead capture.
type LeadsConfig struct {
	// Enabled turns structured submission capture on or off.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "data/leads.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// NotificationsConfig configures owner alerts.
type NotificationsConfig struct {
	Resend ResendConfig `yaml:"resend"`
}

// ResendConfig configures the Resend e-mail notifier. An incomplete config
// disables notifications without failing lead capture.
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`

	// To is the owner address. Usually supplied through NOTIFICATION_EMAIL.
	To string `yaml:"to"`

	Endpoint string `yaml:"endpoint"`

	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mails, API keys and card numbers in log values.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns are extra redaction rules.
	RedactPatterns []RedactPatternConfig `yaml:"redact_patterns"`
}

// RedactPatternConfig is a custom log redaction rule.
type RedactPatternConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "atlas"
	Namespace string `yaml:"namespace"`

	// Address serves /metrics when set (e.g. "127.0.0.1:9090").
	Address string `yaml:"address"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Default: "atlas-g"
	ServiceName string `yaml:"service_name"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}
