package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/casedock/authgate/session"
)

// FileStore keeps the session document in a single JSON file with owner-only
// permissions. Saves go through a temp file and an atomic rename, so a crash
// mid-write never leaves a truncated document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed mirror at path. An empty path defaults
// to ~/.authgate/session.json. The parent directory is created with 0700.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve home directory: %v", ErrMirrorUnavailable, err)
		}
		path = filepath.Join(home, ".authgate", "session.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: create mirror directory: %v", ErrMirrorUnavailable, err)
	}

	return &FileStore{path: path}, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads the stored session. A missing file is a miss, not an error.
func (s *FileStore) Load(_ context.Context) (*session.Session, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}

	return decodeDocument(data)
}

// Save replaces the stored document atomically.
func (s *FileStore) Save(_ context.Context, sess *session.Session) error {
	if s == nil {
		return nil
	}
	data, err := encodeDocument(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}
	return nil
}

// Clear removes the document. Clearing an empty mirror is a no-op.
func (s *FileStore) Clear(_ context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}
	return nil
}
