package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// MaxDownloadBytes caps incoming file downloads. The Bot API itself refuses
// to serve files above 20 MiB to bots.
const MaxDownloadBytes = 20 << 20

// ErrFileTooLarge is returned when a download exceeds MaxDownloadBytes.
var ErrFileTooLarge = errors.New("telegram: file exceeds download limit")

// DownloadFile resolves fileID through getFile and writes the content to
// dstPath with owner-only permissions. On any error the partial file is left
// for the caller's cleanup, which owns the artifact path.
func (c *Client) DownloadFile(ctx context.Context, fileID, dstPath string) (int64, error) {
	file, err := c.GetFile(ctx, fileID)
	if err != nil {
		return 0, err
	}
	if file.FilePath == "" {
		return 0, fmt.Errorf("telegram: getFile returned no file_path for %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(file.FilePath), nil)
	if err != nil {
		return 0, fmt.Errorf("telegram: create download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram: download request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("telegram: download HTTP %d: %s", resp.StatusCode, raw)
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("telegram: open download target: %w", err)
	}

	// Read one byte past the cap so the limit violation is detectable.
	n, err := io.Copy(f, io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("telegram: write download: %w", err)
	}
	if n > MaxDownloadBytes {
		return n, ErrFileTooLarge
	}
	return n, nil
}
