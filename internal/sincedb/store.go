package sincedb

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"journaltail/internal/logging"
)

// Cursor is an opaque journal position token. The empty cursor means no
// position has been recorded.
type Cursor string

// IsEmpty reports whether no position is recorded.
func (c Cursor) IsEmpty() bool { return strings.TrimSpace(string(c)) == "" }

// ErrLocked is returned by Open when another process holds the sincedb lock.
var ErrLocked = errors.New("sincedb is locked by another process")

// Store provides thread-safe access to the current and persisted cursor.
type Store struct {
	path   string
	logger *slog.Logger
	lock   *flock.Flock

	mu        sync.Mutex
	current   Cursor
	persisted Cursor
	closed    bool
}

// Open acquires the writer lock for path and loads the saved cursor. The
// file is created empty if it does not exist.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sincedb path is required")
	}
	logger = logging.NewComponentLogger(logger, "sincedb")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sincedb directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sincedb lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	s := &Store{path: path, logger: logger, lock: lock}
	if _, err := s.Load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Path returns the sincedb file location.
func (s *Store) Path() string { return s.path }

// Current returns the most recently advanced cursor.
func (s *Store) Current() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Persisted returns the cursor last written to disk.
func (s *Store) Persisted() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted
}

// Advance records c as the current position. It does not touch the disk.
func (s *Store) Advance(c Cursor) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
}

// FlushIfChanged writes the current cursor when it differs from the last
// persisted value. It reports whether a write happened.
func (s *Store) FlushIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == s.persisted {
		return false, nil
	}
	if err := s.writeLocked(s.current); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes the current cursor unconditionally.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(s.current)
}

// Load reads the cursor file, creating it when absent, and sets both the
// current and persisted cursor to its trimmed content.
func (s *Store) Load() (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, err := ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if err := s.writeLocked(""); err != nil {
			return "", err
		}
		s.logger.Info("created sincedb", logging.String(logging.FieldPath, s.path))
		cursor = ""
	}

	s.current = cursor
	s.persisted = cursor
	if !cursor.IsEmpty() {
		s.logger.Debug("loaded sincedb cursor",
			logging.String(logging.FieldPath, s.path),
			logging.String(logging.FieldCursor, string(cursor)))
	}
	return cursor, nil
}

// Reset empties the cursor file and clears the in-memory position.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(""); err != nil {
		return err
	}
	s.current = ""
	s.logger.Info("sincedb reset", logging.String(logging.FieldPath, s.path))
	return nil
}

// Close releases the writer lock. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release sincedb lock: %w", err)
	}
	return nil
}

// writeLocked replaces the sincedb through a synced temp file and rename, so
// a crash leaves either the old or the new cursor on disk.
func (s *Store) writeLocked(c Cursor) error {
	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open sincedb temp file: %w", err)
	}
	if _, err := file.WriteString(string(c)); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write sincedb: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync sincedb: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close sincedb: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename sincedb: %w", err)
	}
	syncDir(filepath.Dir(s.path))
	s.persisted = c
	return nil
}

// syncDir makes a completed rename durable. Failures are ignored; the data
// itself is already synced.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// ReadFile returns the cursor stored at path without taking the writer lock.
// A missing file is reported as fs.ErrNotExist.
func ReadFile(path string) (Cursor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("read sincedb: %w", err)
	}
	return Cursor(strings.TrimSpace(string(data))), nil
}
