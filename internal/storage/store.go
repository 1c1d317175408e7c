// Package storage implements the per-user ledger store: one SQLite database
// per user, written by a single writer at a time and read concurrently.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"finledger/internal/core"

	_ "modernc.org/sqlite"
)

// Options tunes how a store file is opened.
type Options struct {
	BusyTimeout time.Duration
}

// Store is the handle to one user's ledger. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	// mu serializes writers; readers share it so they never observe a
	// half-applied multi-statement mutation.
	mu sync.RWMutex
}

// Open opens (creating if needed) the ledger database at dbPath and applies
// pending migrations. Reopening an existing file keeps its data. Returned
// errors never contain the store's location.
func Open(dbPath string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, &core.StorageError{Op: "create store directory", Err: redact(err, dbPath)}
	}

	dsn := buildDSN(dbPath, opts)

	if err := RunMigrations(dsn); err != nil {
		return nil, &core.StorageError{Op: "provision schema", Err: redact(err, dbPath)}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &core.StorageError{Op: "open sqlite database", Err: redact(err, dbPath)}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "ping database", Err: redact(err, dbPath)}
	}

	s := &Store{db: db}
	if _, err := s.schemaVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// redact strips the store location from err.
func redact(err error, dbPath string) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	msg := err.Error()
	dir := filepath.Dir(dbPath)
	if !strings.Contains(msg, dir) && !strings.Contains(msg, filepath.ToSlash(dir)) {
		return err
	}
	msg = strings.ReplaceAll(msg, dir, "<store>")
	msg = strings.ReplaceAll(msg, filepath.ToSlash(dir), "<store>")
	return errors.New(msg)
}

func buildDSN(dbPath string, opts Options) string {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + filepath.ToSlash(dbPath) + "?" + q.Encode()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// write runs fn in a transaction while holding the writer lock. Errors
// returned by fn are passed through; commit failures become storage errors.
func (s *Store) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.fail(op, err)
	}
	return nil
}

// read holds the reader lock for the duration of fn.
func (s *Store) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// fail wraps a database error, keeping context cancellation recognizable.
func (s *Store) fail(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &core.StorageError{Op: op, Err: err}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// where accumulates filter clauses for list queries.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) dateRange(column string, r core.DateRange) {
	if !r.From.IsZero() {
		w.add(column+" >= ?", r.From.String())
	}
	if !r.To.IsZero() {
		w.add(column+" <= ?", r.To.String())
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func parseStoredDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("corrupt date %q", s)
	}
	return d, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
