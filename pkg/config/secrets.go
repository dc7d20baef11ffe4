package config

import (
	"context"
	"fmt"

	"atlas-g/protocol/pkg/security/secrets"
)

// resolveSecrets expands ${secret:name} references in the credential
// fields. Other fields are left untouched.
func resolveSecrets(cfg *Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"generation.api_key", &cfg.Generation.APIKey},
		{"sessions.redis.url", &cfg.Sessions.Redis.URL},
		{"notifications.resend.api_key", &cfg.Notifications.Resend.APIKey},
	}

	var resolver *secrets.Resolver
	for _, f := range fields {
		if !secrets.HasReference(*f.value) {
			continue
		}
		if resolver == nil {
			var file secrets.Provider
			if cfg.Secrets.Dir != "" {
				file = secrets.NewFileProvider(cfg.Secrets.Dir)
			}
			resolver = secrets.NewResolver(secrets.NewEnvProvider(cfg.Secrets.EnvPrefix), file)
		}

		value, err := resolver.Expand(context.Background(), *f.value)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f.name, err)
		}
		*f.value = value
	}
	return nil
}
