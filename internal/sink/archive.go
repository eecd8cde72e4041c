package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"journaltail/internal/journal"
	"journaltail/internal/tail"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the archive was created by an incompatible version.
var ErrSchemaMismatch = errors.New("archive schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// ArchivedRecord is one row of the records table.
type ArchivedRecord struct {
	ID         int64
	Cursor     string
	Timestamp  uint64
	Host       string
	Message    string
	Body       string
	ArchivedAt time.Time
}

// Time converts the realtime timestamp to a time.Time.
func (r ArchivedRecord) Time() time.Time {
	return time.UnixMicro(int64(r.Timestamp)).UTC()
}

// Archive stores records in SQLite.
type Archive struct {
	db   *sql.DB
	path string
}

// OpenArchive creates or opens the archive database at path.
func OpenArchive(ctx context.Context, path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	a := &Archive{db: db, path: path}
	if err := a.initSchema(ctx, true); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// OpenArchiveReadOnly opens an existing archive for listing. It never creates
// the file or its schema; a missing file is reported as fs.ErrNotExist.
func OpenArchiveReadOnly(ctx context.Context, path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	dsn := (&url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	a := &Archive{db: db, path: path}
	if err := a.initSchema(ctx, false); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Path returns the database location.
func (a *Archive) Path() string { return a.path }

func (a *Archive) initSchema(ctx context.Context, create bool) error {
	var tableExists int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		if !create {
			return fmt.Errorf("%w: %s has no schema_version table", ErrSchemaMismatch, a.path)
		}
		return a.createSchema(ctx)
	}

	var version int
	if err := a.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, a.path)
	}
	return nil
}

func (a *Archive) createSchema(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Deliver inserts rec. A record whose cursor is already archived is ignored.
func (a *Archive) Deliver(ctx context.Context, rec tail.Record) error {
	cursor := rec.String(tail.KeyCursor)
	if cursor == "" {
		return errors.New("archive record: missing cursor")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	message := rec.String("message")
	if message == "" {
		message = rec.String(journal.FieldMessage)
	}

	return retryOnBusy(ctx, func() error {
		_, err := a.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO records (cursor, timestamp, host, message, body, archived_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cursor, int64(rec.Timestamp()), rec.String(tail.KeyHost), message, string(body),
			time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

// List returns the most recent records, newest first. A non-positive limit
// returns every record.
func (a *Archive) List(ctx context.Context, limit int) ([]ArchivedRecord, error) {
	query := "SELECT id, cursor, timestamp, host, message, body, archived_at FROM records ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []ArchivedRecord
	for rows.Next() {
		var (
			rec        ArchivedRecord
			ts         int64
			archivedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Cursor, &ts, &rec.Host, &rec.Message, &rec.Body, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = uint64(ts)
		if parsed, err := time.Parse(time.RFC3339Nano, archivedAt); err == nil {
			rec.ArchivedAt = parsed
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Count returns the number of archived records.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// LastCursor returns the cursor of the most recently archived record.
func (a *Archive) LastCursor(ctx context.Context) (string, error) {
	var cursor string
	err := a.db.QueryRowContext(ctx, "SELECT cursor FROM records ORDER BY id DESC LIMIT 1").Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last cursor: %w", err)
	}
	return cursor, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
