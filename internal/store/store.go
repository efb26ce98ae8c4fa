package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrSchemaFromFuture is returned by Open when the on-disk schema version
// exceeds CurrentSchemaVersion — this binary is older than the database.
var ErrSchemaFromFuture = errors.New("store: database schema is newer than this binary supports")

// ErrCorrupt wraps a SQLite integrity failure detected on open.
var ErrCorrupt = errors.New("store: database failed integrity check")

// Store is a handle onto a single-file relational index. A Store is safe
// for concurrent use by multiple goroutines; SQLite's own locking plus WAL
// mode serialize writers while letting readers proceed.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open creates the database file at path if absent, applies pending
// migrations, and returns a writable Store. Foreign keys are enforced and
// WAL journaling is enabled so readers do not block the writer.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkIntegrity(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database for read-only access, used by the
// query and sql passthrough paths. It never applies migrations and fails if
// the file does not already exist.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s read-only: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: PRAGMA foreign_keys = ON: %w", err)
	}

	s := &Store{db: db, path: path, readOnly: true}
	version, err := s.schemaVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	if version > CurrentSchemaVersion {
		db.Close()
		return nil, ErrSchemaFromFuture
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path this Store was opened against.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for the sql passthrough command — the
// only caller outside this package allowed raw SQL.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) schemaVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM _schema_info").Scan(&version)
	if err != nil {
		// _schema_info does not exist yet on a fresh database.
		return 0, nil
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (s *Store) ensureSchema() error {
	current, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if current > CurrentSchemaVersion {
		return ErrSchemaFromFuture
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("store: apply migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO _schema_info (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) checkIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupt, result)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Callers never manage commit/rollback themselves.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// Reset deletes the database file and reopens it, reapplying the schema
// from scratch. This is destructive and backs the `db --reset` CLI verb.
func Reset(path string) (*Store, error) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return Open(path)
}

// DefaultPath resolves the store location: REPOINDEX_DB when set, then
// ${XDG_CONFIG_HOME or ~}/.repoindex/index.db.
func DefaultPath() string {
	if v := os.Getenv("REPOINDEX_DB"); v != "" {
		return v
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = home
	}
	return filepath.Join(base, ".repoindex", "index.db")
}

// now is a clock hook for the store package; no code or test in the
// package references it.
var now = time.Now
