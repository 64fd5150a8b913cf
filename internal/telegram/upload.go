package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// SendVoiceFile uploads the OGG/Opus file at path as a voice note. The Bot
// API renders it with the in-chat playback widget only when the container is
// OGG with an Opus stream, which is what the synthesis backends produce.
func (c *Client) SendVoiceFile(ctx context.Context, chatID int64, path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("telegram: open voice file: %w", err)
	}
	defer f.Close() //nolint:errcheck // best-effort close

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeVoiceForm(mw, chatID, filepath.Base(path), f)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf("%s/bot%s/sendVoice", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("telegram: create sendVoice request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendVoice request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram: read sendVoice response: %w", err)
	}

	var apiResp APIResponse[Message]
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("telegram: decode sendVoice response: %w", err)
	}
	if !apiResp.OK {
		apiErr := &APIError{
			Code:        apiResp.ErrorCode,
			Description: apiResp.Description,
		}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return nil, apiErr
	}
	return &apiResp.Result, nil
}

func writeVoiceForm(mw *multipart.Writer, chatID int64, filename string, src io.Reader) error {
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := mw.CreateFormFile("voice", filename)
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy voice data: %w", err)
	}
	return nil
}
