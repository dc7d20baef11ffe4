// Package config provides configuration management for the Atlas-G agent.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated before use.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("atlas.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("atlas.yaml")
//
// An empty path yields the defaults, which lets the CLI run without a file.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ATLAS_SECTION_FIELD:
//
//   - ATLAS_SESSIONS_BACKEND overrides sessions.backend
//   - ATLAS_GENERATION_PROVIDER overrides generation.provider
//   - ATLAS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The provider keys are also taken from GOOGLE_API_KEY or OPENAI_API_KEY
// (whichever matches generation.provider), and the lead notifier from
// RESEND_API_KEY and NOTIFICATION_EMAIL.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// The CLI loads the configuration once:
//
//	if err := config.Initialize(path); err != nil {
//	    return err
//	}
//	cfg := config.GetConfig()
//
// Library packages take their settings as arguments instead.
//
// # Validation
//
// Validate collects every problem into a ValidationError holding one
// FieldError per field, so a bad file reports all of its mistakes at once.
package config
