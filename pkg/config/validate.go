package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"atlas-g/protocol/pkg/telemetry/logging"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "sessions.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// The generation API key is not required here; commands that never call the
// model (evidence, session, patterns) must work without one.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateAgent(&cfg.Agent)...)
	errs = append(errs, validateGeneration(&cfg.Generation)...)
	errs = append(errs, validateGovernance(&cfg.Governance)...)
	errs = append(errs, validateSessions(&cfg.Sessions)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateLeads(&cfg.Leads)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateAgent(cfg *AgentConfig) []FieldError {
	var errs []FieldError

	if cfg.AuditTail < 0 {
		errs = append(errs, FieldError{
			Field:   "agent.audit_tail",
			Message: "audit tail must be non-negative",
		})
	}
	if cfg.ThoughtChainLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "agent.thought_chain_limit",
			Message: "thought chain limit must be non-negative",
		})
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, FieldError{
			Field:   "agent.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}
	if cfg.MaxOutputTokens < 0 {
		errs = append(errs, FieldError{
			Field:   "agent.max_output_tokens",
			Message: "max output tokens must be non-negative",
		})
	}
	if cfg.RateLimit.TurnsPerMinute < 0 || cfg.RateLimit.TurnsPerHour < 0 {
		errs = append(errs, FieldError{
			Field:   "agent.rate_limit",
			Message: "turn budgets must be non-negative",
		})
	}
	if cfg.TurnTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "agent.turn_timeout",
			Message: "turn timeout must be non-negative",
		})
	}

	for i, layer := range cfg.ContextLayers {
		prefix := fmt.Sprintf("agent.context_layers[%d]", i)
		if layer.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		}
		if len(layer.Keywords) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".keywords", Message: "at least one keyword is required"})
		}
		if strings.TrimSpace(layer.Prompt) == "" {
			errs = append(errs, FieldError{Field: prefix + ".prompt", Message: "prompt is required"})
		}
	}
	for i, rule := range cfg.DomainRules {
		prefix := fmt.Sprintf("agent.domain_rules[%d]", i)
		if rule.Label == "" {
			errs = append(errs, FieldError{Field: prefix + ".label", Message: "label is required"})
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".keywords", Message: "at least one keyword is required"})
		}
	}

	return errs
}

func validateGeneration(cfg *GenerationConfig) []FieldError {
	var errs []FieldError

	validProviders := map[string]bool{"gemini": true, "openai": true}
	if !validProviders[cfg.Provider] {
		errs = append(errs, FieldError{
			Field:   "generation.provider",
			Message: fmt.Sprintf("invalid provider %q (must be 'gemini' or 'openai')", cfg.Provider),
		})
	}
	if cfg.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
			errs = append(errs, FieldError{
				Field:   "generation.base_url",
				Message: fmt.Sprintf("invalid URL format: %v", err),
			})
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "generation.timeout",
			Message: "timeout must be positive",
		})
	}

	return errs
}

func validateGovernance(cfg *GovernanceConfig) []FieldError {
	var errs []FieldError

	if cfg.WatchPatterns && cfg.PatternsFile == "" {
		errs = append(errs, FieldError{
			Field:   "governance.patterns_file",
			Message: "patterns file is required when watch_patterns is enabled",
		})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.watch_debounce",
			Message: "watch debounce must be non-negative",
		})
	}

	return errs
}

func validateSessions(cfg *SessionsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "sessions.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
	case "redis":
		if u, err := url.Parse(cfg.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, FieldError{
				Field:   "sessions.redis.url",
				Message: fmt.Sprintf("invalid redis URL %q", cfg.Redis.URL),
			})
		}
		if cfg.Redis.TTL < 0 {
			errs = append(errs, FieldError{
				Field:   "sessions.redis.ttl",
				Message: "ttl must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "sessions.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory', 'sqlite' or 'redis')", cfg.Backend),
		})
	}

	return errs
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.max_idle_conns",
				Message: "max idle connections cannot exceed max open connections",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory' or 'sqlite')", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.recorder.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.Recorder.MaxFieldLength < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.recorder.max_field_length",
			Message: "max field length must be non-negative",
		})
	}

	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "evidence.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.archive_path",
			Message: "archive path is required when archive_before_delete is enabled",
		})
	}

	return errs
}

func validateLeads(cfg *LeadsConfig) []FieldError {
	if cfg.Enabled && cfg.SQLitePath == "" {
		return []FieldError{{
			Field:   "leads.sqlite_path",
			Message: "sqlite path is required when leads are enabled",
		}}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be 'json' or 'text')", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0 and 1",
			})
		}
	}

	return errs
}
