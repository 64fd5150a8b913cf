// Package spool manages the temporary audio artifacts the pipelines create:
// downloaded voice messages and synthesized output files. Every artifact
// belongs to exactly one pipeline invocation, which removes it on all exit
// paths; the janitor sweeps anything a crash left behind.
package spool

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Spool is a directory of uniquely named temporary audio files.
type Spool struct {
	dir    string
	logger *slog.Logger
}

// New ensures dir exists with owner-only permissions and returns the spool.
func New(dir string, logger *slog.Logger) (*Spool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("spool: create dir %s: %w", dir, err)
	}
	return &Spool{dir: dir, logger: logger}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Path allocates a fresh artifact path with the given extension (".mp3",
// ".oga", ...). The file itself is created by whoever writes it.
func (s *Spool) Path(ext string) string {
	return filepath.Join(s.dir, uuid.NewString()+ext)
}

// Remove deletes an artifact. A missing file is fine (the writer may have
// failed before creating it); any other failure is logged, never propagated,
// since removal runs on cleanup paths that must not mask the real error.
func (s *Spool) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("spool: remove failed", "path", path, "error", err)
	}
}

// Stats reports how many artifacts the spool holds and their total bytes.
func (s *Spool) Stats() (count int, bytes int64) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("spool: read dir failed", "error", err)
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		bytes += info.Size()
	}
	return count, bytes
}

// SweepOlderThan removes artifacts whose modification time is older than
// maxAge and returns how many were removed. Files still being written by a
// live pipeline are younger than any sane maxAge.
func (s *Spool) SweepOlderThan(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("spool: read dir failed", "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("spool: sweep remove failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
