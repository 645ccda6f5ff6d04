// Package blob stores small named documents (credentials) on disk and in
// S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
)

var ErrNotFound = errors.New("blob not found")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Store loads and saves named documents.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// FileStore keeps one 0600 file per name under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob dir is required")
	}
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("blob dir must be absolute")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Save(_ context.Context, name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir blob dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

func (s *FileStore) path(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Mirror reads from Primary first and falls back to Secondary. Saves go to
// both; a Secondary failure is logged and does not fail the save.
type Mirror struct {
	Primary   Store
	Secondary Store
}

func (m Mirror) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := m.Primary.Load(ctx, name)
	if err == nil || m.Secondary == nil {
		return data, err
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	data, err = m.Secondary.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if saveErr := m.Primary.Save(ctx, name, data); saveErr != nil {
		log.Printf("blob mirror %s: restore primary failed: %v", name, saveErr)
	}
	return data, nil
}

func (m Mirror) Save(ctx context.Context, name string, data []byte) error {
	if err := m.Primary.Save(ctx, name, data); err != nil {
		return err
	}
	if m.Secondary == nil {
		return nil
	}
	if err := m.Secondary.Save(ctx, name, data); err != nil {
		log.Printf("blob mirror %s: remote persist failed: %v", name, err)
	}
	return nil
}
