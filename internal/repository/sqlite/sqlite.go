// Package sqlite implements the repository interfaces on SQLite.
//
// We use modernc.org/sqlite rather than mattn/go-sqlite3 because it is a pure
// Go translation of SQLite — no CGo, no C compiler, painless cross-compiles.
// The blank-import-free named import below still registers the "sqlite"
// driver with database/sql via the package's init function.
//
// All uniqueness guarantees (slug, short_id, username, email, api_key) rest
// on UNIQUE indexes enforced at commit time. There is no application-level
// locking: a race between two concurrent writes with the same derived slug is
// resolved by the engine rejecting the second INSERT, which surfaces here as
// apperror.ErrConflict for the service layer to arbitrate.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB pool and implements repository.SnippetRepository,
// repository.UserRepository, and repository.TaxonomyRepository.
//
// It is constructed once at the composition root and passed by reference into
// each service's constructor — no package-level database handle exists
// anywhere in this codebase.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface a bad path or permissions problem now, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — needed for a web
	// server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys default to OFF in SQLite. The schema depends on them:
	// ON DELETE CASCADE (users→snippets) and ON DELETE SET NULL
	// (categories/languages→snippets).
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			api_key       TEXT UNIQUE,
			github_id     INTEGER UNIQUE,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			is_approved   INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			slug TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS languages (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			slug TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS snippets (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			title         TEXT NOT NULL,
			slug          TEXT NOT NULL UNIQUE,
			short_id      TEXT NOT NULL UNIQUE,
			description   TEXT NOT NULL DEFAULT '',
			code          TEXT NOT NULL,
			tags          TEXT NOT NULL DEFAULT '',
			reference_url TEXT NOT NULL DEFAULT '',
			category_id   INTEGER REFERENCES categories(id) ON DELETE SET NULL,
			language_id   INTEGER REFERENCES languages(id) ON DELETE SET NULL,
			user_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_private    INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snippets_created_at  ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id     ON snippets(user_id);
		CREATE INDEX IF NOT EXISTS idx_snippets_category_id ON snippets(category_id);
		CREATE INDEX IF NOT EXISTS idx_snippets_language_id ON snippets(language_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE (or primary key)
// constraint failure. This is the only place driver-specific error codes are
// inspected — everywhere else sees apperror.ErrConflict.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
