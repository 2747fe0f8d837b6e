// Package client is the consumer side of the cache: a TTL-bounded local cache, a client
// for the serving API, and the loaders that keep the two in step.
package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Storage is a flat key-value store of byte values.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Clear() error
}

// DiskStorage keeps one file per key in the root of a billy filesystem.
type DiskStorage struct {
	fs billy.Filesystem
}

// NewDiskStorage creates a DiskStorage on fs.
func NewDiskStorage(fs billy.Filesystem) *DiskStorage {
	return &DiskStorage{fs: fs}
}

func (d *DiskStorage) Get(key string) ([]byte, bool, error) {
	data, err := util.ReadFile(d.fs, fileName(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

func (d *DiskStorage) Set(key string, value []byte) error {
	if err := util.WriteFile(d.fs, fileName(key), value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (d *DiskStorage) Remove(key string) error {
	err := d.fs.Remove(fileName(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry.
func (d *DiskStorage) Clear() error {
	entries, err := d.fs.ReadDir("/")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := d.fs.Remove(e.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

// fileName escapes key so that names like "readme-a/b" stay a single file.
func fileName(key string) string {
	return url.PathEscape(key)
}
