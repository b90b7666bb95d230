package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys=ON`
	pragmaBusyTimeout    = `PRAGMA busy_timeout=5000`

	// DefaultFileName is the database file created inside the data directory.
	DefaultFileName = "simple_todo_note.db"
)

type Options struct {
	// LockTimeout bounds how long an operation waits for exclusive access.
	// Zero waits until the caller's context is done.
	LockTimeout time.Duration
}

// Store is the process-wide storage handle. All access goes through Do or Tx,
// which hold the store's exclusive lock for the duration of the callback.
type Store struct {
	db   *sql.DB
	path string

	lock        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
	lockTimeout time.Duration
}

// Handle exposes the repositories bound to the connection or transaction the
// current operation runs on. It must not be retained after the callback
// returns.
type Handle struct {
	Todos TodoRepository
	Meta  MetaRepository
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func newHandle(q querier) Handle {
	return Handle{
		Todos: &todoRepository{q: q},
		Meta:  &metaRepository{q: q},
	}
}

func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open storage: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	// Single writer: one connection, kept alive so per-connection pragmas stick.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := RunMigrations(db, DefaultMigrations()); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureDBPermissions(path); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:          db,
		path:        path,
		lock:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		lockTimeout: opts.LockTimeout,
	}, nil
}

// Close waits for the in-flight operation, if any, and closes the database.
// Operations started after Close fail with ErrLockUnavailable.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		s.lock <- struct{}{}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Do runs fn with exclusive access to the store, outside of a transaction.
func (s *Store) Do(ctx context.Context, fn func(Handle) error) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(newHandle(s.db))
}

// Tx runs fn with exclusive access inside a single transaction. The
// transaction commits only if fn returns nil; any error or panic rolls back
// every write fn made.
func (s *Store) Tx(ctx context.Context, fn func(Handle) error) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(newHandle(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// SchemaVersion reports the last applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var raw string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&raw); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return version, nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is not open", ErrLockUnavailable)
	}
	select {
	case <-s.done:
		return nil, fmt.Errorf("%w: store is closed", ErrLockUnavailable)
	default:
	}

	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	select {
	case s.lock <- struct{}{}:
		return func() { <-s.lock }, nil
	case <-s.done:
		return nil, fmt.Errorf("%w: store is closed", ErrLockUnavailable)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrLockUnavailable, ctx.Err())
	}
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{pragmaJournalModeWAL, pragmaForeignKeysOn, pragmaBusyTimeout}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("configure sqlite %q: %w", stmt, err)
		}
	}
	return nil
}

func ensureDBPermissions(path string) error {
	if err := os.Chmod(path, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set db file permissions: %w", err)
		}
	}

	walPath := path + "-wal"
	if err := os.Chmod(walPath, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set wal file permissions: %w", err)
		}
	}
	return nil
}
