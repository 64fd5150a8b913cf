// Package state tracks transient per-user coordination state: the exclusive
// operation lock that prevents overlapping long-running work, the one-shot
// voice-transform intent, and the session last-seen index. Everything lives
// in memory.
package state

import "sync"

// Kind identifies the long-running operation a user has in flight.
type Kind string

// Operation kinds.
const (
	KindGeneratingText Kind = "generating-text"
	KindTextToVoice    Kind = "converting-text-to-voice"
	KindVoiceTransform Kind = "transforming-voice"
)

// Operations is the per-user exclusive lock. At most one operation per user
// is active at any time; acquisition is atomic under a single mutex, so
// handlers running in parallel cannot both win.
type Operations struct {
	mu     sync.Mutex
	active map[int64]Kind
}

// NewOperations creates an empty tracker.
func NewOperations() *Operations {
	return &Operations{active: make(map[int64]Kind)}
}

// TryAcquire marks the user as busy with the given kind. Returns false,
// without mutating anything, if the user already has an operation in flight.
func (o *Operations) TryAcquire(userID int64, kind Kind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.active[userID]; busy {
		return false
	}
	o.active[userID] = kind
	return true
}

// Release clears the user's operation. Idempotent: releasing an idle user is
// a no-op.
func (o *Operations) Release(userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, userID)
}

// Kind reports the user's in-flight operation, if any.
func (o *Operations) Kind(userID int64) (Kind, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k, ok := o.active[userID]
	return k, ok
}

// Active returns how many users have an operation in flight.
func (o *Operations) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}
