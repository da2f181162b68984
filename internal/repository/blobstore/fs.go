package blobstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TUD-CERT/docleaner/internal/identity"
)

// FS is a Store backed by a local directory, one file per blob, named by
// an opaque generated key. This is the default/dev backend.
type FS struct {
	dir string
}

// NewFS returns an FS rooted at dir, creating it if necessary.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blobstore: create %s: %w", dir, err)
	}
	return &FS{dir: dir}, nil
}

func (f *FS) path(key string) string {
	return filepath.Join(f.dir, key)
}

func (f *FS) Put(data []byte) (string, error) {
	key := identity.Generate()
	if err := os.WriteFile(f.path(key), data, 0o640); err != nil {
		return "", fmt.Errorf("blobstore: write %s: %w", key, err)
	}
	return key, nil
}

func (f *FS) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return data, nil
}

func (f *FS) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}
