package profile

import (
	"context"
	"fmt"
	"sync"
)

// StaticStore serves profiles from a fixed map. For tests and simulations.
type StaticStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewStaticStore seeds a store with the given profiles.
func NewStaticStore(profiles ...*Profile) *StaticStore {
	s := &StaticStore{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if p != nil && p.ID != "" {
			s.profiles[p.ID] = p.Clone()
		}
	}
	return s
}

// Put adds or replaces a profile.
func (s *StaticStore) Put(p *Profile) {
	if p == nil || p.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p.Clone()
}

// Remove deletes a profile.
func (s *StaticStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
}

// ProfileByID returns a clone of the stored profile, or ErrNotFound.
func (s *StaticStore) ProfileByID(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}
