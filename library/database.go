package library

import (
	"fmt"

	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the in-memory SQLite handle holding members, books and the
// transaction ledger. Nothing is written to disk; closing the database (or
// the process exiting) discards all records.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens a private in-memory SQLite database and applies the schema.
func NewDatabase() (*Database, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database lives and dies with its connection, so pin it to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close releases the connection and with it every stored record.
func (d *Database) Close() error { return d.db.Close() }

// Begin starts a transaction. While it is open the single connection is held,
// so callers must route every query through the returned Tx.
func (d *Database) Begin() (*sqlx.Tx, error) { return d.db.Beginx() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = db.Get(&current, `SELECT value FROM meta WHERE key='schema_version';`)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS members (
            member_id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            age INTEGER NOT NULL,
            has_borrowed BOOLEAN NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            book_id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT 1,
            title_key TEXT NOT NULL,
            author_key TEXT NOT NULL,
            isbn_key TEXT NOT NULL
        );`,
		// No foreign keys: history must outlive deleted books.
		`CREATE TABLE IF NOT EXISTS transactions (
            transaction_id INTEGER PRIMARY KEY,
            member_id INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            borrowed_at DATETIME NOT NULL,
            due_date DATETIME NOT NULL,
            returned_at DATETIME,
            status TEXT NOT NULL CHECK (status IN ('active', 'returned'))
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_active_member
            ON transactions(member_id) WHERE status = 'active';`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_active_book
            ON transactions(book_id) WHERE status = 'active';`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_member
            ON transactions(member_id, transaction_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}
