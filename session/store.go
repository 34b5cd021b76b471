package session

import "sync"

// Listener receives session events. It must not block; long work belongs on
// the listener's own goroutine.
type Listener func(Event)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id uint64
	fn Listener
}

// Store is the single holder of the current session. All mutations flow
// through [Store.Set]; reads return clones so callers can never alias the
// stored value.
//
// Listeners fire in registration order. Notification batches are serialized
// on a dedicated mutex so two concurrent Set calls cannot interleave their
// fan-outs. The state lock is released before listeners run, so a listener
// may call [Store.Current] or [Store.Subscribe] without deadlock.
type Store struct {
	mu      sync.RWMutex
	current *Session
	subs    []subscription
	nextID  uint64

	notifyMu sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns a clone of the stored session, or nil when signed out.
func (s *Store) Current() *Session {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Subscribe registers fn and synchronously delivers EventInitial with the
// session current at registration time. The returned Unsubscribe is
// idempotent.
func (s *Store) Subscribe(fn Listener) Unsubscribe {
	if s == nil || fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	initial := s.current.Clone()
	s.mu.Unlock()

	s.notifyMu.Lock()
	fn(Event{Kind: EventInitial, Session: initial})
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Set replaces the stored session and notifies every listener with the given
// kind. The session is cloned on the way in and again per delivery, so
// neither the caller nor any listener can mutate shared state.
func (s *Store) Set(sess *Session, kind EventKind) {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.current = sess.Clone()
	targets := make([]subscription, len(s.subs))
	copy(targets, s.subs)
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, sub := range targets {
		sub.fn(Event{Kind: kind, Session: s.Current()})
	}
}

// Clear drops the stored session and notifies listeners with kind.
func (s *Store) Clear(kind EventKind) {
	s.Set(nil, kind)
}

// Len reports the number of active subscriptions.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
