package mirror

import (
	"context"
	"sync"

	"github.com/casedock/authgate/session"
)

// MemoryStore holds the session in process memory. It exists for tests and
// simulations; a restart loses it by definition.
type MemoryStore struct {
	mu   sync.RWMutex
	sess *session.Session
}

// NewMemoryStore returns an empty in-memory mirror.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a clone of the stored session, or (nil, nil) on a miss.
func (s *MemoryStore) Load(_ context.Context) (*session.Session, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Clone(), nil
}

// Save stores a clone of sess.
func (s *MemoryStore) Save(_ context.Context, sess *session.Session) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess.Clone()
	return nil
}

// Clear drops the stored session.
func (s *MemoryStore) Clear(_ context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
