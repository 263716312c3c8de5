package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalURLPrefix is the route the HTTP server serves Dir under.
const LocalURLPrefix = "/uploads"

// LocalBackend writes under Dir. BaseURL is the server's public origin; objects
// are addressed as BaseURL + LocalURLPrefix + "/" + objectPath.
type LocalBackend struct {
	Dir     string
	BaseURL string
}

func NewLocalBackend(dir, baseURL string) *LocalBackend {
	return &LocalBackend{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	full, err := b.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return fmt.Sprintf("%s%s/%s", b.BaseURL, LocalURLPrefix, filepath.ToSlash(objectPath)), nil
}

func (b *LocalBackend) Delete(ctx context.Context, objectPath string) error {
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve keeps every object inside Dir.
func (b *LocalBackend) resolve(objectPath string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectPath))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(b.Dir, clean), nil
}
