package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conorfennell/revision/internal/domain"
)

// FileStore keeps the collection in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
// The file and its directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns an empty collection when the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (map[string]domain.CardState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]domain.CardState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file %s: %w", s.path, err)
	}
	return Unmarshal(data)
}

// Save writes to a temporary file and renames it over the old one.
func (s *FileStore) Save(ctx context.Context, cards map[string]domain.CardState) error {
	data, err := Marshal(cards)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace progress file %s: %w", s.path, err)
	}
	return nil
}

// Export returns the persisted collection as indented JSON.
func (s *FileStore) Export(ctx context.Context) ([]byte, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Marshal(cards)
}

func (s *FileStore) Close() error { return nil }
