// Package dbopen opens the SQLite files sessiond persists to (the audit
// event log) with WAL-mode pragmas applied, and provides busy-retry
// helpers for writers that contend with readers.
//
// The driver must be blank-imported by the binary:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("audit.db", dbopen.WithSchema(ddl))
//
// Tests use OpenMemory, which pins every query to one connection so the
// in-memory database is shared.
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const driverName = "sqlite"

type settings struct {
	busyTimeoutMS int
	mkdirAll      bool
	schemas       []string
	schemaFiles   []string
}

// Option customises Open behaviour.
type Option func(*settings)

// WithBusyTimeout overrides PRAGMA busy_timeout, in milliseconds.
// The default is 10000.
func WithBusyTimeout(ms int) Option { return func(s *settings) { s.busyTimeoutMS = ms } }

// WithMkdirAll creates the database file's parent directories on open.
func WithMkdirAll() Option { return func(s *settings) { s.mkdirAll = true } }

// WithSchema queues DDL to execute once the pragmas are applied. May be
// given multiple times; statements run in order.
func WithSchema(ddl string) Option {
	return func(s *settings) { s.schemas = append(s.schemas, ddl) }
}

// WithSchemaFile queues an .sql file to read and execute after pragmas.
func WithSchemaFile(path string) Option {
	return func(s *settings) { s.schemaFiles = append(s.schemaFiles, path) }
}

// Open opens an SQLite database at path, applies the WAL pragmas, and
// runs any queued schema DDL. The returned handle is verified with a
// ping before it is handed back.
func Open(path string, opts ...Option) (*sql.DB, error) {
	s := settings{busyTimeoutMS: 10_000}
	for _, o := range opts {
		o(&s)
	}

	if s.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}

	ddl := s.schemas
	for _, f := range s.schemaFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: read schema file %s: %w", f, err)
		}
		ddl = append(ddl, string(data))
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory database for a test and closes it on
// cleanup. MaxOpenConns is pinned to 1 because every connection to
// ":memory:" would otherwise see its own empty database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
