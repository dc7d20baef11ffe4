package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var secretRef = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up across providers in order.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver. Nil providers are skipped.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{logger: slog.Default().With("component", "secrets")}
	for _, p := range providers {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
	return r
}

// Lookup returns the first value any provider holds for name.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	for _, p := range r.providers {
		value, err := p.Lookup(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("secret %q from %s: %w", name, p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return secretRef.MatchString(s)
}

// Expand replaces every ${secret:name} reference in s. Unresolvable
// references are left in place and reported together.
func (r *Resolver) Expand(ctx context.Context, s string) (string, error) {
	var errs []error
	out := secretRef.ReplaceAllStringFunc(s, func(match string) string {
		name := secretRef.FindStringSubmatch(match)[1]
		value, err := r.Lookup(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	return out, errors.Join(errs...)
}

func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
