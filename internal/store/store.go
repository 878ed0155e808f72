package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades the ledger from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order to ledgers whose user_version is lower.
// Version 0 is the bare schema.sql.
var migrations = []migration{
	{
		version: 1,
		name:    "index checkpoints by run and step",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_checkpoints_run_step ON checkpoints(run_id, step)`,
		},
	},
}

// pragmas are applied on every connection open.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is the run ledger.
// Uses SQLite with WAL mode so history can be read while a run is writing.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path, applying pragmas, the schema and
// any pending migrations. Opening an up-to-date ledger changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One writer: the run command. Readers use their own process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

// migrate runs each pending migration in its own transaction and bumps
// user_version inside it, so a failed migration leaves the previous version.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// verifyPragma checks that a pragma reads back as want. Used by tests.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
