package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables. The name
// "google-api-key" with prefix "ATLAS_SECRET_" is read from
// ATLAS_SECRET_GOOGLE_API_KEY.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Lookup implements Provider.
func (p *EnvProvider) Lookup(_ context.Context, name string) (string, error) {
	key := p.envVar(name)
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: env var %s", ErrNotFound, key)
	}
	return value, nil
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
