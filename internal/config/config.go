// Package config reads the process configuration from environment variables.
// There is no config file and no flags: everything the relay needs arrives
// through the environment, and anything missing is reported in one pass.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvElevenLabsKey  = "ELEVENLABS_API_KEY"
	EnvAllowedUserIDs = "AUTHORIZED_USER_IDS"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvAdminUserIDs   = "ADMIN_USER_IDS"
	EnvVoiceID        = "ELEVENLABS_VOICE_ID"
	EnvOpenAIBaseURL  = "OPENAI_BASE_URL"
	EnvOpenAIModel    = "OPENAI_MODEL"
	EnvOpsAddr        = "OPS_ADDR"
	EnvSpoolDir       = "SPOOL_DIR"
	EnvLogLevel       = "LOG_LEVEL"
)

// Config is the assembled process configuration.
type Config struct {
	// TelegramToken authenticates against the Bot API. Required.
	TelegramToken string

	// ElevenLabsKey authenticates against the synthesis backend. Required.
	ElevenLabsKey string

	// AllowedUserIDs is the authorization list. The variable is required but
	// may parse to an empty set, which denies everyone and is logged as a
	// warning at startup.
	AllowedUserIDs []int64

	// OpenAIKey enables the chat pipelines. Optional: when empty, chat
	// commands answer with a capability-disabled notice.
	OpenAIKey string

	// AdminUserIDs grants access to the status command. Optional.
	AdminUserIDs []int64

	// VoiceID overrides the default synthesis voice. Optional.
	VoiceID string

	// OpenAIBaseURL and OpenAIModel override the generation backend defaults.
	OpenAIBaseURL string
	OpenAIModel   string

	// OpsAddr is the health/metrics listen address. Defaults to ":8090";
	// setting it to the empty string disables the ops server.
	OpsAddr string

	// SpoolDir holds temporary audio artifacts.
	SpoolDir string

	// LogLevel is the slog level for the whole process.
	LogLevel slog.Level

	// allowedPresent distinguishes an unset authorization variable (fatal)
	// from one that is set but parses to an empty list (warning only).
	allowedPresent bool
}

// Load reads the environment and parses typed values. Malformed values are
// collected and reported together.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv(EnvTelegramToken),
		ElevenLabsKey: os.Getenv(EnvElevenLabsKey),
		OpenAIKey:     os.Getenv(EnvOpenAIKey),
		VoiceID:       os.Getenv(EnvVoiceID),
		OpenAIBaseURL: os.Getenv(EnvOpenAIBaseURL),
		OpenAIModel:   os.Getenv(EnvOpenAIModel),
		OpsAddr:       envOr(EnvOpsAddr, ":8090"),
		SpoolDir:      envOr(EnvSpoolDir, filepath.Join(os.TempDir(), "voxrelay")),
	}

	var errs []error

	allowedRaw, allowedPresent := os.LookupEnv(EnvAllowedUserIDs)
	cfg.allowedPresent = allowedPresent
	if allowedPresent {
		ids, err := parseIDList(EnvAllowedUserIDs, allowedRaw)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.AllowedUserIDs = ids
	}

	adminIDs, err := parseIDList(EnvAdminUserIDs, os.Getenv(EnvAdminUserIDs))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AdminUserIDs = adminIDs

	level, err := parseLogLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.LogLevel = level

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks that all required values are present. Every missing value
// is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.TelegramToken == "" {
		errs = append(errs, fmt.Errorf("config: %s is required", EnvTelegramToken))
	}
	if c.ElevenLabsKey == "" {
		errs = append(errs, fmt.Errorf("config: %s is required", EnvElevenLabsKey))
	}
	if !c.allowedPresent {
		errs = append(errs, fmt.Errorf("config: %s is required", EnvAllowedUserIDs))
	}

	return errors.Join(errs...)
}

// ChatEnabled reports whether the generation backend is configured.
func (c *Config) ChatEnabled() bool {
	return c.OpenAIKey != ""
}

// envOr returns the variable's value, or def when it is unset. An empty set
// value is returned as-is.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// parseIDList parses a comma-separated list of numeric user IDs. Blank
// segments are skipped so trailing commas are harmless.
func parseIDList(key, raw string) ([]int64, error) {
	var ids []int64
	var errs []error

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s contains non-numeric ID %q", key, part))
			continue
		}
		ids = append(ids, id)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: %s must be debug, info, warn or error, got %q", EnvLogLevel, raw)
	}
}
