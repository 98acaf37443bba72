package token

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fleet-dash/internal/live-sync-service/core/ports/driven"
)

// FileStore keeps the auth token in a file readable only by the current user.
type FileStore struct {
	path string
	// fallback is returned when the file does not exist, e.g. a token handed over by environment.
	fallback string
}

var _ driven.ITokenStore = (*FileStore)(nil)

func NewFileStore(path, fallback string) *FileStore {
	return &FileStore{path: path, fallback: fallback}
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	if token := strings.TrimSpace(string(data)); token != "" {
		return token, nil
	}
	return s.fallback, nil
}

func (s *FileStore) Save(token string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
