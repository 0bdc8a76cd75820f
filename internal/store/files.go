// Package store persists pipeline state: contribution content on the
// filesystem and job rows plus source documents in SQLite.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// FileStore keeps contribution content under a root directory, one
// file per canonical path. Paths are write-once: writing to an
// existing path reports a collision instead of overwriting, because a
// collision always means two jobs derived the same identity.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Write persists content at path, rejecting collisions.
func (s *FileStore) Write(ctx context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return &types.CollisionError{Path: path}
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.StoreDebug("wrote %d bytes to %s", len(content), path)
	return nil
}

// Read returns the content stored at path.
func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, nil
}

// Exists reports whether path holds content.
func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolve maps a store-relative path onto the root, refusing paths
// that would escape it.
func (s *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid store path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}
