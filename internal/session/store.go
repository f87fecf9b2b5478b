// Package session persists authenticated platform sessions between runs.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"quotex-trader/internal/models"
)

// Store persists a session as JSON on disk. Deleting the file forces a
// fresh authentication on the next connect.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted session. A missing file is returned as
// os.ErrNotExist.
func (s *Store) Load() (models.Session, error) {
	var sess models.Session
	data, err := os.ReadFile(s.path)
	if err != nil {
		return sess, err
	}
	if err := json.Unmarshal(data, &sess); err != nil {
		return models.Session{}, fmt.Errorf("parsing session file: %w", err)
	}
	return sess, nil
}

// Save writes the session to disk, creating parent directories as needed.
func (s *Store) Save(sess models.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the persisted session. Clearing a missing file is not an
// error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
