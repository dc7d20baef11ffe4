package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads secrets from one file per secret in a directory, the
// layout used by Docker and Kubernetes secret mounts. Files must be regular
// files readable by the owner only (0600 or 0400). Surrounding whitespace is
// trimmed.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a provider over dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// Lookup implements Provider.
func (p *FileProvider) Lookup(_ context.Context, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	path := filepath.Join(p.Dir, name)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %q is not a regular file", name)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- name is a single path element
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }
