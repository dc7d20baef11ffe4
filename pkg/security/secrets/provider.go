// Package secrets resolves ${secret:name} references in configuration values
// from environment variables and mounted secret files.
//
// Providers are consulted in order; the first one holding the secret wins.
//
//	r := secrets.NewResolver(
//	    secrets.NewEnvProvider("ATLAS_SECRET_"),
//	    secrets.NewFileProvider("/run/secrets"),
//	)
//	key, err := r.Expand(ctx, "${secret:google-api-key}")
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a provider that does not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider looks up secrets by name.
type Provider interface {
	// Lookup returns the secret value, or an error wrapping ErrNotFound.
	Lookup(ctx context.Context, name string) (string, error)

	// Name identifies the provider in errors and logs.
	Name() string
}
