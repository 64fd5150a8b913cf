package elevenlabs

import (
	"errors"
	"fmt"
)

// Sentinel errors for callers that branch on failure class.
var (
	// ErrRateLimited indicates the API rejected the request due to quota
	// or concurrency limits.
	ErrRateLimited = errors.New("elevenlabs: rate limited")

	// ErrUnavailable indicates the API is unreachable or failing.
	ErrUnavailable = errors.New("elevenlabs: service unavailable")

	// ErrAuthentication indicates the API key was rejected.
	ErrAuthentication = errors.New("elevenlabs: authentication failed")

	// ErrVoiceNotFound indicates the configured voice ID does not exist
	// in the account's voice library.
	ErrVoiceNotFound = errors.New("elevenlabs: voice not found")
)

// VoiceSettings is the voice_settings object sent with synthesis requests.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// DefaultSettings returns the voice settings used when the caller supplies
// no overrides.
func DefaultSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.4,
		SimilarityBoost: 0.7,
		Style:           0.0,
		UseSpeakerBoost: true,
		Speed:           1.0,
	}
}

// Overrides carries optional per-request deviations from the default voice
// settings. Nil fields keep the default.
type Overrides struct {
	Stability       *float64
	SimilarityBoost *float64
	Speed           *float64
}

// Empty reports whether no override is set.
func (o Overrides) Empty() bool {
	return o.Stability == nil && o.SimilarityBoost == nil && o.Speed == nil
}

// ttsRequest is the request body for the text-to-speech endpoint.
type ttsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

// Subscription describes the account's plan and quota usage.
type Subscription struct {
	Tier           string `json:"tier"`
	CharacterCount int64  `json:"character_count"`
	CharacterLimit int64  `json:"character_limit"`
	Status         string `json:"status"`
}

// Remaining returns how many characters of quota are left.
func (s Subscription) Remaining() int64 {
	if s.CharacterLimit < s.CharacterCount {
		return 0
	}
	return s.CharacterLimit - s.CharacterCount
}

// Voice is one entry from the account's voice library.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// apiDetail is the error payload returned inside the "detail" field.
type apiDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type apiErrorBody struct {
	Detail apiDetail `json:"detail"`
}

// APIError is a structured error response from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("elevenlabs: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("elevenlabs: HTTP %d: %s", e.StatusCode, e.Message)
}
