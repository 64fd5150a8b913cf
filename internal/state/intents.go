package state

import "sync"

// Intents records which users have armed voice transformation for their next
// audio message. The value is the message ID of the arming command, kept for
// logging. An intent never survives more than one subsequent message: the next
// audio consumes it, anything else cancels it.
type Intents struct {
	mu    sync.Mutex
	armed map[int64]int
}

// NewIntents creates an empty tracker.
func NewIntents() *Intents {
	return &Intents{armed: make(map[int64]int)}
}

// Arm records that the user's next audio message should be transformed.
// Re-arming overwrites the stored reference.
func (i *Intents) Arm(userID int64, messageID int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.armed[userID] = messageID
}

// Peek reports whether the user has an armed intent without consuming it.
func (i *Intents) Peek(userID int64) (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	ref, ok := i.armed[userID]
	return ref, ok
}

// Consume atomically checks and clears the user's intent. Of two racing
// callers, exactly one observes ok == true.
func (i *Intents) Consume(userID int64) (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	ref, ok := i.armed[userID]
	if ok {
		delete(i.armed, userID)
	}
	return ref, ok
}

// Clear drops the user's intent if present. Idempotent.
func (i *Intents) Clear(userID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.armed, userID)
}

// Armed returns how many users currently have an armed intent.
func (i *Intents) Armed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.armed)
}
