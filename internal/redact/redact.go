// Package redact keeps credentials out of log output. Telegram embeds the
// bot token in every request URL, so any logged transport error is one
// missed scrub away from leaking it.
package redact

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces redacted secrets in log output.
const Placeholder = "[redacted]"

// tokenPatterns match credential shapes the relay handles: Telegram bot
// tokens and OpenAI-style API keys. ElevenLabs keys are plain hex with no
// distinctive shape and rely on literal matching instead.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{5,}:[A-Za-z0-9_-]{30,}`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}`),
}

// Redactor scrubs secrets from strings. Literal values are registered from
// the loaded configuration at startup; pattern matching catches tokens that
// arrive embedded in URLs or error text. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	literals []string
}

// NewRedactor returns a Redactor scrubbing the given literal secrets plus
// the built-in token shapes.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		r.AddSecret(s)
	}
	return r
}

// AddSecret registers a literal value to scrub. Empty strings are ignored.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Clean returns s with all registered literals and token-shaped substrings
// replaced by Placeholder.
func (r *Redactor) Clean(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	literals := r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	for _, p := range tokenPatterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}
