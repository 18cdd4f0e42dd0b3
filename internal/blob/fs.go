package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore returns a store rooted at root on fsys.
func NewFSStore(fsys afero.Fs, root string) *FSStore {
	return &FSStore{fs: fsys, root: root}
}

// Put implements Store.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("Put: mkdir: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return "", fmt.Errorf("Put: write %s: %w", p, err)
	}
	return p, nil
}

// Get implements Store.
func (s *FSStore) Get(ctx context.Context, location string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Get %s: %w", location, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *FSStore) Delete(ctx context.Context, location string) error {
	err := s.fs.Remove(location)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}
