package state

import (
	"sync"
	"time"
)

// Sessions records the last-activity timestamp per user. A session is created
// on the first authorized interaction and lives for the process lifetime.
type Sessions struct {
	mu   sync.RWMutex
	seen map[int64]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewSessions creates an empty session tracker.
func NewSessions() *Sessions {
	return &Sessions{
		seen: make(map[int64]time.Time),
		now:  time.Now,
	}
}

// Touch records activity for the user, creating the session if absent.
func (s *Sessions) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[userID] = s.now()
}

// LastSeen returns the user's last recorded activity.
func (s *Sessions) LastSeen(userID int64) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.seen[userID]
	return t, ok
}

// Len returns the number of users seen since startup.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
