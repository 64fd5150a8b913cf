// Package auth decides which platform users may talk to the bot and which of
// them are administrators. Both sets are fixed at startup.
package auth

// Registry answers authorization questions with O(1) set lookups.
// Unknown users are denied; an empty allowed set denies everyone.
type Registry struct {
	allowed map[int64]struct{}
	admins  map[int64]struct{}
}

// NewRegistry builds a Registry from the configured ID lists.
func NewRegistry(allowed, admins []int64) *Registry {
	r := &Registry{
		allowed: make(map[int64]struct{}, len(allowed)),
		admins:  make(map[int64]struct{}, len(admins)),
	}
	for _, id := range allowed {
		r.allowed[id] = struct{}{}
	}
	for _, id := range admins {
		r.admins[id] = struct{}{}
	}
	return r
}

// Allowed reports whether the user may interact with the bot.
func (r *Registry) Allowed(userID int64) bool {
	_, ok := r.allowed[userID]
	return ok
}

// Admin reports whether the user has administrative access. Admins are not
// implicitly allowed; both lists are checked independently.
func (r *Registry) Admin(userID int64) bool {
	_, ok := r.admins[userID]
	return ok
}

// Empty reports whether the allowed set contains no users. Callers log this
// as a misconfiguration warning at startup; it is not an error.
func (r *Registry) Empty() bool {
	return len(r.allowed) == 0
}
