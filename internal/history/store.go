package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dealdesk/internal/config"
	"dealdesk/internal/workflow"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	lockRetryDelay          = 25 * time.Millisecond
	lockWaitTimeout         = 5 * time.Second
)

// ErrDisabled is returned by OpenFromConfig when history is turned off.
var ErrDisabled = errors.New("history disabled")

// Entry is a journaled attempt.
type Entry struct {
	ID string
	workflow.Attempt
}

// Store persists attempts in SQLite. It implements workflow.Recorder.
type Store struct {
	db   *sql.DB
	path string

	// writeMu serializes writers inside the process; lock serializes them
	// across processes.
	writeMu sync.Mutex
	lock    *flock.Flock
}

var _ workflow.Recorder = (*Store)(nil)

// Open initializes or connects to the journal at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
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
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, lock: flock.New(path + ".lock")}
	if err := store.withWriteLock(context.Background(), store.initSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenFromConfig opens the configured journal. It returns ErrDisabled when
// history is turned off.
func OpenFromConfig(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	path := cfg.HistoryPath()
	if path == "" {
		return nil, ErrDisabled
	}
	return Open(path)
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record journals a finished attempt.
func (s *Store) Record(ctx context.Context, attempt workflow.Attempt) error {
	ctx = ensureContext(ctx)
	started := attempt.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	return s.withWriteLock(ctx, func(ctx context.Context) error {
		_, err := s.execWithRetry(ctx,
			`INSERT INTO attempts (
                id, request_id, slot, file_name, file_size, doc_type, processing_id,
                sheet_url, outcome, error_kind, error_message, started_at, duration_ms
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			nullableString(attempt.RequestID),
			string(attempt.Slot),
			nullableString(attempt.FileName),
			attempt.FileSize,
			nullableString(attempt.DocType),
			nullableString(attempt.ProcessingID),
			nullableString(attempt.SheetURL),
			string(attempt.Outcome),
			nullableString(attempt.ErrorKind),
			nullableString(attempt.Error),
			started.UTC().Format(time.RFC3339Nano),
			attempt.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

// List returns the most recent attempts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM attempts ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return entries, nil
}

// Clear removes every journaled attempt and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		res, err := s.execWithRetry(ctx, `DELETE FROM attempts`)
		if err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) withWriteLock(ctx context.Context, fn func(context.Context) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, lockWaitTimeout)
	defer cancel()
	ok, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire history lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire history lock: %s is held by another process", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn(ctx)
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
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
	for attempt := range busyRetryAttempts {
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
