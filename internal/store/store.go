// Package store persists the last known good snapshot of the tracked repositories.
//
// Every artifact is a whole document: the repository list, the refresh metadata, and one
// language map and one README per repository. Writes go to a temporary file in the target
// directory that is then renamed over the destination, so a concurrent reader observes
// either the previous or the new document and never a partial one. The store assumes a
// single writing process and does no locking.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/naka-gawa/repo-cache/internal/domain"
)

var (
	// ErrNotFound is returned when the requested artifact has never been written.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidName is returned for repository names that are not filesystem safe.
	ErrInvalidName = errors.New("invalid repository name")
)

const (
	reposFile    = "repos.json"
	metadataFile = "metadata.json"
	languagesDir = "languages"
	readmesDir   = "readmes"
)

// FileStore keeps artifacts on a billy.Filesystem rooted at the cache directory.
type FileStore struct {
	fs billy.Filesystem
}

// New returns a FileStore on fs. Call Init before the first write.
func New(fs billy.Filesystem) *FileStore {
	return &FileStore{fs: fs}
}

// Init creates the artifact directories.
func (s *FileStore) Init() error {
	for _, dir := range []string{languagesDir, readmesDir} {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return nil
}

// WriteRepositories replaces the repository list.
func (s *FileStore) WriteRepositories(repos []domain.Repository) error {
	if repos == nil {
		repos = []domain.Repository{}
	}
	return s.writeJSON(reposFile, repos)
}

// ReadRepositories returns the persisted repository list in its stored order.
func (s *FileStore) ReadRepositories() ([]domain.Repository, error) {
	var repos []domain.Repository
	if err := s.readJSON(reposFile, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// WriteLanguages replaces the language map of one repository.
func (s *FileStore) WriteLanguages(name string, languages domain.LanguageMap) error {
	p, err := artifactPath(languagesDir, name, ".json")
	if err != nil {
		return err
	}
	if languages == nil {
		languages = domain.LanguageMap{}
	}
	return s.writeJSON(p, languages)
}

// ReadLanguages returns the language map of one repository.
func (s *FileStore) ReadLanguages(name string) (domain.LanguageMap, error) {
	p, err := artifactPath(languagesDir, name, ".json")
	if err != nil {
		return nil, err
	}
	var languages domain.LanguageMap
	if err := s.readJSON(p, &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

// WriteReadme replaces the README text of one repository.
func (s *FileStore) WriteReadme(name, readme string) error {
	p, err := artifactPath(readmesDir, name, ".md")
	if err != nil {
		return err
	}
	return s.writeFile(p, []byte(readme))
}

// ReadReadme returns the README text of one repository.
func (s *FileStore) ReadReadme(name string) (string, error) {
	p, err := artifactPath(readmesDir, name, ".md")
	if err != nil {
		return "", err
	}
	data, err := s.readFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteReadme removes the README of one repository. Removing a missing README is not an error.
func (s *FileStore) DeleteReadme(name string) error {
	p, err := artifactPath(readmesDir, name, ".md")
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// WriteMetadata replaces the refresh metadata.
func (s *FileStore) WriteMetadata(meta domain.CacheMetadata) error {
	return s.writeJSON(metadataFile, meta)
}

// ReadMetadata returns the refresh metadata.
func (s *FileStore) ReadMetadata() (*domain.CacheMetadata, error) {
	var meta domain.CacheMetadata
	if err := s.readJSON(metadataFile, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func artifactPath(dir, name, ext string) (string, error) {
	if !domain.IsSafeName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path.Join(dir, name+ext), nil
}

func (s *FileStore) writeJSON(p string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return s.writeFile(p, data)
}

func (s *FileStore) readJSON(p string, v interface{}) error {
	data, err := s.readFile(p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", p, err)
	}
	return nil
}

// writeFile replaces p atomically through a temporary sibling file.
func (s *FileStore) writeFile(p string, data []byte) (err error) {
	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := s.fs.TempFile(dir, "."+path.Base(p)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", p, err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", p, err)
	}
	if err = s.fs.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("replace %s: %w", p, err)
	}
	return nil
}

func (s *FileStore) readFile(p string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}
