package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// An empty path yields the defaults. The configuration is not modified by
// environment variables; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ATLAS_SECTION_FIELD (e.g., ATLAS_SESSIONS_BACKEND). The
// conventional provider variables GOOGLE_API_KEY, OPENAI_API_KEY,
// RESEND_API_KEY and NOTIFICATION_EMAIL are honoured as well.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Resolve ${secret:name} references
// 5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	// Overrides may change the provider, which changes the default model.
	ApplyDefaults(cfg)

	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Decoding onto the defaults keeps omitted fields at their default.
	// Generation.Model is reset so a provider change picks its own default.
	cfg.Generation.Model = ""
	cfg.Generation.ClassifierModel = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Agent overrides
	if val := os.Getenv("ATLAS_AGENT_SUBJECT"); val != "" {
		cfg.Agent.Subject = val
	}
	if val := os.Getenv("ATLAS_AGENT_AUDIT_TAIL"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Agent.AuditTail = i
		}
	}
	if val := os.Getenv("ATLAS_AGENT_TURN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Agent.TurnTimeout = d
		}
	}
	if val := os.Getenv("ATLAS_AGENT_TURNS_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Agent.RateLimit.TurnsPerMinute = i
		}
	}

	// Generation overrides
	if val := os.Getenv("ATLAS_GENERATION_PROVIDER"); val != "" {
		if val != cfg.Generation.Provider {
			cfg.Generation.Model = ""
			cfg.Generation.ClassifierModel = ""
		}
		cfg.Generation.Provider = val
	}
	if val := os.Getenv("ATLAS_GENERATION_MODEL"); val != "" {
		cfg.Generation.Model = val
	}
	if val := os.Getenv("ATLAS_GENERATION_CLASSIFIER_MODEL"); val != "" {
		cfg.Generation.ClassifierModel = val
	}
	if val := os.Getenv("ATLAS_GENERATION_BASE_URL"); val != "" {
		cfg.Generation.BaseURL = val
	}
	if cfg.Generation.APIKey == "" {
		switch cfg.Generation.Provider {
		case "gemini":
			cfg.Generation.APIKey = os.Getenv("GOOGLE_API_KEY")
		case "openai":
			cfg.Generation.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if val := os.Getenv("ATLAS_GENERATION_API_KEY"); val != "" {
		cfg.Generation.APIKey = val
	}

	// Knowledge and governance overrides
	if val := os.Getenv("ATLAS_KNOWLEDGE_DOCUMENT_PATH"); val != "" {
		cfg.Knowledge.DocumentPath = val
	}
	if val := os.Getenv("ATLAS_GOVERNANCE_PATTERNS_FILE"); val != "" {
		cfg.Governance.PatternsFile = val
	}
	if val := os.Getenv("ATLAS_GOVERNANCE_WATCH_PATTERNS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Governance.WatchPatterns = b
		}
	}

	// Session overrides
	if val := os.Getenv("ATLAS_SESSIONS_BACKEND"); val != "" {
		cfg.Sessions.Backend = val
	}
	if val := os.Getenv("ATLAS_SESSIONS_SQLITE_PATH"); val != "" {
		cfg.Sessions.SQLite.Path = val
	}
	if val := os.Getenv("ATLAS_SESSIONS_REDIS_URL"); val != "" {
		cfg.Sessions.Redis.URL = val
	}
	if val := os.Getenv("ATLAS_SESSIONS_REDIS_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Sessions.Redis.TTL = d
		}
	}

	// Evidence overrides
	if val := os.Getenv("ATLAS_EVIDENCE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Evidence.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_EVIDENCE_BACKEND"); val != "" {
		cfg.Evidence.Backend = val
	}
	if val := os.Getenv("ATLAS_EVIDENCE_SQLITE_PATH"); val != "" {
		cfg.Evidence.SQLite.Path = val
	}
	if val := os.Getenv("ATLAS_EVIDENCE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Evidence.Retention.Days = i
		}
	}

	// Lead and notification overrides
	if val := os.Getenv("ATLAS_LEADS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Leads.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_LEADS_SQLITE_PATH"); val != "" {
		cfg.Leads.SQLitePath = val
	}
	if val := os.Getenv("RESEND_API_KEY"); val != "" {
		cfg.Notifications.Resend.APIKey = val
	}
	if val := os.Getenv("NOTIFICATION_EMAIL"); val != "" {
		cfg.Notifications.Resend.To = val
	}
	if val := os.Getenv("ATLAS_NOTIFICATIONS_RESEND_FROM"); val != "" {
		cfg.Notifications.Resend.From = val
	}

	// Telemetry overrides
	if val := os.Getenv("ATLAS_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_TELEMETRY_METRICS_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.Address = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("ATLAS_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("ATLAS_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
