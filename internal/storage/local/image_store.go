// Package local implements a filesystem image store.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PathPrefix is the logical prefix of every persisted image path.
const PathPrefix = "uploads/"

// Config captures the parameters for the local filesystem image store.
type Config struct {
	// Dir is the directory where shelf photos are written.
	Dir string
}

// ImageStore writes shelf photos to a directory.
type ImageStore struct {
	dir string
}

// New creates the store, creating Dir when missing and verifying it is writable.
func New(cfg Config) (*ImageStore, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("upload directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat upload directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("upload path is not a directory")
	}

	testFile := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("upload directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &ImageStore{dir: cfg.Dir}, nil
}

// Save writes data as name and returns "uploads/<name>".
func (s *ImageStore) Save(_ context.Context, name string, data []byte) (string, error) {
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return PathPrefix + name, nil
}

// Delete removes the image at a path returned by Save. Missing files are ignored.
func (s *ImageStore) Delete(_ context.Context, p string) error {
	full, err := s.resolve(strings.TrimPrefix(p, PathPrefix))
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// Purge removes every regular, non-hidden file in the directory.
func (s *ImageStore) Purge(context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list upload directory: %w", err)
	}
	deleted := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", e.Name(), err)
		}
		deleted++
	}
	return deleted, nil
}

// resolve maps a bare file name into the directory, rejecting traversal.
func (s *ImageStore) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("image name is required")
	}
	if path.Base(filepath.ToSlash(name)) != filepath.ToSlash(name) || name == "." || name == ".." {
		return "", fmt.Errorf("path traversal detected")
	}
	return filepath.Join(s.dir, name), nil
}
