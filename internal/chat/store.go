// Package chat holds per-user conversation histories for the generation
// backend. Histories live in memory only and are lost on restart.
package chat

import (
	"sync"

	"github.com/voxrelay/voxrelay/internal/llm"
)

// RetainedExchanges is how many user/assistant pairs a history keeps besides
// the system prompt.
const RetainedExchanges = 10

// MaxEntries is the history cap: the system prompt plus RetainedExchanges
// user/assistant pairs.
const MaxEntries = 1 + 2*RetainedExchanges

// Store is a thread-safe, in-memory conversation store. Every history starts
// with the fixed system prompt at index 0; that entry is never evicted.
type Store struct {
	mu           sync.RWMutex
	systemPrompt string
	histories    map[int64][]llm.Message
}

// NewStore creates an empty store seeding new histories with systemPrompt.
func NewStore(systemPrompt string) *Store {
	return &Store{
		systemPrompt: systemPrompt,
		histories:    make(map[int64][]llm.Message),
	}
}

// getOrCreate returns the user's history, seeding it on first use.
// Callers must hold s.mu.
func (s *Store) getOrCreate(userID int64) []llm.Message {
	h, ok := s.histories[userID]
	if !ok {
		h = []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt}}
		s.histories[userID] = h
	}
	return h
}

// History returns a copy of the user's history, creating it if absent.
// The result always has the system prompt at index 0 and is never empty.
func (s *Store) History(userID int64) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.getOrCreate(userID)
	result := make([]llm.Message, len(h))
	copy(result, h)
	return result
}

// Append adds a message to the user's history, seeding it if absent, then
// evicts the oldest entries after index 0 until the cap holds.
func (s *Store) Append(userID int64, msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.getOrCreate(userID), msg)
	for len(h) > MaxEntries {
		// Index 0 is the system prompt; evict the entry after it.
		h = append(h[:1], h[2:]...)
	}
	s.histories[userID] = h
}

// Reset deletes the user's entire history. The next access reseeds it.
// Resetting an absent user is a no-op.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, userID)
}

// Len returns the number of entries stored for a user, 0 if absent.
func (s *Store) Len(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories[userID])
}

// Users returns how many users currently have a history.
func (s *Store) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories)
}
