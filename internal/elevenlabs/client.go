package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultVoiceID is the stock "Rachel" voice, used when no voice is
// configured.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

const (
	defaultBaseURL       = "https://api.elevenlabs.io"
	defaultTTSModel      = "eleven_multilingual_v2"
	defaultSTSModel      = "eleven_multilingual_sts_v2"
	defaultTimeout       = 180 * time.Second
	defaultHeaderTimeout = 60 * time.Second

	// outputFormat selects Ogg/Opus so the audio can be delivered as a
	// Telegram voice note without transcoding.
	outputFormat = "opus_48000_64"
)

// Clamp bounds accepted by the synthesis endpoints. Values outside these
// ranges are clamped rather than rejected.
const (
	minStability  = 0.0
	maxStability  = 1.0
	minSimilarity = 0.0
	maxSimilarity = 1.0
	minSpeed      = 0.7
	maxSpeed      = 1.2
)

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

// Config holds the settings for the ElevenLabs client.
type Config struct {
	APIKey   string
	BaseURL  string
	VoiceID  string
	TTSModel string
	STSModel string
	Timeout  time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.VoiceID == "" {
		c.VoiceID = DefaultVoiceID
	}
	if c.TTSModel == "" {
		c.TTSModel = defaultTTSModel
	}
	if c.STSModel == "" {
		c.STSModel = defaultSTSModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Client talks to the ElevenLabs REST API.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an ElevenLabs client. Zero config fields other than
// APIKey are filled with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.defaults()
	return &Client{
		config: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: defaultHeaderTimeout,
			},
		},
		logger: logger,
	}
}

// VoiceID returns the voice used for synthesis.
func (c *Client) VoiceID() string {
	return c.config.VoiceID
}

// effectiveSettings merges overrides into the defaults and clamps the result
// to the ranges the API accepts. Out-of-range values are adjusted silently;
// the caller already validated that they are numbers.
func effectiveSettings(ov Overrides) VoiceSettings {
	s := DefaultSettings()
	if ov.Stability != nil {
		s.Stability = clamp(*ov.Stability, minStability, maxStability)
	}
	if ov.SimilarityBoost != nil {
		s.SimilarityBoost = clamp(*ov.SimilarityBoost, minSimilarity, maxSimilarity)
	}
	if ov.Speed != nil {
		s.Speed = clamp(*ov.Speed, minSpeed, maxSpeed)
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TextToSpeech synthesizes text with the configured voice and writes the
// Ogg/Opus audio to dstPath. When overrides are empty the voice's stored
// settings apply; otherwise the merged settings are sent explicitly.
func (c *Client) TextToSpeech(ctx context.Context, text string, ov Overrides, dstPath string) error {
	body := ttsRequest{
		Text:    text,
		ModelID: c.config.TTSModel,
	}
	if !ov.Empty() {
		s := effectiveSettings(ov)
		body.VoiceSettings = &s
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elevenlabs: marshal tts request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.config.BaseURL, url.PathEscape(c.config.VoiceID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("elevenlabs: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	n, err := c.synthesize(req, dstPath)
	if err != nil {
		return err
	}
	c.logger.Debug("text-to-speech complete",
		"voice_id", c.config.VoiceID,
		"chars", len(text),
		"bytes", n,
		"duration", time.Since(start),
	)
	return nil
}

// SpeechToSpeech re-voices the audio file at srcPath with the configured
// voice and writes the Ogg/Opus result to dstPath. Conversion always runs
// with the default settings.
func (c *Client) SpeechToSpeech(ctx context.Context, srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("elevenlabs: open source audio: %w", err)
	}
	defer src.Close() //nolint:errcheck // best-effort close

	settings, err := json.Marshal(DefaultSettings())
	if err != nil {
		return fmt.Errorf("elevenlabs: marshal voice settings: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeSTSForm(mw, c.config.STSModel, string(settings), src)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	endpoint := fmt.Sprintf("%s/v1/speech-to-speech/%s?output_format=%s",
		c.config.BaseURL, url.PathEscape(c.config.VoiceID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return fmt.Errorf("elevenlabs: create sts request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	n, err := c.synthesize(req, dstPath)
	if err != nil {
		return err
	}
	c.logger.Debug("speech-to-speech complete",
		"voice_id", c.config.VoiceID,
		"bytes", n,
		"duration", time.Since(start),
	)
	return nil
}

func writeSTSForm(mw *multipart.Writer, modelID, settings string, src io.Reader) error {
	if err := mw.WriteField("model_id", modelID); err != nil {
		return fmt.Errorf("write model_id field: %w", err)
	}
	if err := mw.WriteField("voice_settings", settings); err != nil {
		return fmt.Errorf("write voice_settings field: %w", err)
	}
	part, err := mw.CreateFormFile("audio", "input.ogg")
	if err != nil {
		return fmt.Errorf("create audio part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy audio data: %w", err)
	}
	return nil
}

// synthesize executes a prepared synthesis request and streams the audio
// response to dstPath.
func (c *Client) synthesize(req *http.Request, dstPath string) (int64, error) {
	req.Header.Set("xi-api-key", c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return 0, req.Context().Err()
		}
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return 0, handleErrorResponse(resp)
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: open output file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("elevenlabs: write audio: %w", err)
	}
	return n, nil
}

// GetSubscription fetches the account's plan and quota usage.
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := c.getJSON(ctx, "/v1/user/subscription", &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Voices lists the account's voice library.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var resp voicesResponse
	if err := c.getJSON(ctx, "/v1/voices", &resp); err != nil {
		return nil, err
	}
	return resp.Voices, nil
}

// VerifyVoice checks that the configured voice ID exists in the account's
// voice library.
func (c *Client) VerifyVoice(ctx context.Context) error {
	voices, err := c.Voices(ctx)
	if err != nil {
		return err
	}
	for _, v := range voices {
		if v.VoiceID == c.config.VoiceID {
			c.logger.Debug("voice verified", "voice_id", v.VoiceID, "name", v.Name)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrVoiceNotFound, c.config.VoiceID)
}

// Verify performs the startup health check: the subscription must be
// readable and the configured voice must exist.
func (c *Client) Verify(ctx context.Context) error {
	sub, err := c.GetSubscription(ctx)
	if err != nil {
		return fmt.Errorf("subscription lookup: %w", err)
	}
	c.logger.Info("elevenlabs subscription",
		"tier", sub.Tier,
		"used", sub.CharacterCount,
		"limit", sub.CharacterLimit,
	)
	if err := c.VerifyVoice(ctx); err != nil {
		return err
	}
	return nil
}

// getJSON executes a GET request against the API and decodes the JSON
// response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("elevenlabs: decode %s response: %w", path, err)
	}
	return nil
}

// handleErrorResponse maps HTTP error status codes to sentinel errors. The
// API wraps error details in a "detail" object whose status string is more
// precise than the HTTP code, so it is consulted first.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	detail := parsed.Detail

	switch {
	case detail.Status == "quota_exceeded" || detail.Status == "too_many_concurrent_requests":
		return fmt.Errorf("%w: %s", ErrRateLimited, detail.Message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", ErrAuthentication, resp.StatusCode, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, body)
	default:
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     detail.Status,
			Message:    firstNonEmpty(detail.Message, string(body)),
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
