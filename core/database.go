package core

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database is a sqlite-backed Storage, for installs where several client
// processes share one session file.
type Database struct {
	dbFile string
	conn   *sql.DB
}

// DefaultDatabasePath is ~/.scoutme/session.db.
func DefaultDatabasePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".scoutme", "session.db"), nil
}

func NewDatabase(dbFile string) *Database {
	return &Database{dbFile: dbFile}
}

// Connect opens the database file, creating its directory and schema.
func (db *Database) Connect() error {
	if dir := filepath.Dir(db.dbFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", db.dbFile)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	db.conn = conn

	if err := db.initDatabase(); err != nil {
		return err
	}
	return db.checkAndUpdateSchema()
}

func (db *Database) initDatabase() error {
	query := `
    CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    )`
	if _, err := db.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// checkAndUpdateSchema adds columns introduced after the first release.
func (db *Database) checkAndUpdateSchema() error {
	rows, err := db.conn.Query("PRAGMA table_info(kv)")
	if err != nil {
		return fmt.Errorf("failed to fetch table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read table info: %w", err)
	}

	if !columns["updated_at"] {
		if _, err := db.conn.Exec(`ALTER TABLE kv ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add updated_at column: %w", err)
		}
	}
	return nil
}

func (db *Database) Get(key string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (db *Database) Set(key, value string) error {
	query := `
    INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
    ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := db.conn.Exec(query, key, value, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (db *Database) Remove(key string) error {
	if _, err := db.conn.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}
