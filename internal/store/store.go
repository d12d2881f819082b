// Package store is the relational persistence layer: users and the message
// log, the read-only prediction join, the push ledger and agent threads.
//
// One SQL dialect serves both backends. Queries use $N placeholders, which
// lib/pq and go-sqlite3 both accept, and avoid vendor-specific casts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultDirPermissions  = 0o755
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// DetectDialect picks postgres for URL or key/value DSNs and sqlite for
// anything that looks like a file path.
func DetectDialect(dsn string) Dialect {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return DialectPostgres
	case strings.Contains(d, "host=") || strings.Contains(d, "dbname="):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// Open connects, pings and applies the embedded schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	dialect := DetectDialect(dsn)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetMaxIdleConns(DefaultMaxIdleConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	default:
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite3://")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", sqliteDSN(path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// A single writer connection keeps ON CONFLICT claims serialized
		// without SQLITE_BUSY churn.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	migrations := sqliteMigrations
	if dialect == DialectPostgres {
		migrations = postgresMigrations
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_foreign_keys=on"
}

func (s *Store) Dialect() Dialect { return s.dialect }

// DB exposes the pool for seeding fixtures in tests and tools.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// nilIfEmpty maps "" to SQL NULL.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func utc(t time.Time) time.Time { return t.UTC() }

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
