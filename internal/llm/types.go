package llm

import "errors"

// Role identifies the sender of a message in a conversation.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Sentinel errors for backend failure classification.
var (
	// ErrRateLimited indicates the backend rejected the call with HTTP 429.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrUnavailable indicates a network failure or a 5xx response.
	ErrUnavailable = errors.New("llm: backend unavailable")

	// ErrAuthentication indicates the API key was rejected.
	ErrAuthentication = errors.New("llm: authentication failed")
)
