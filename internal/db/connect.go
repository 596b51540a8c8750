package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	defaultPath = "eksiblock.db"
)

// Connect opens the history database and makes sure the schema exists.
func Connect(opts ...Option) (*sql.DB, error) {
	o := &dbOptions{path: defaultPath}
	for _, opt := range opts {
		opt(o)
	}

	dsn, err := dataSourceName(o)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if !o.isReadOnly {
		if err := EnsureSchema(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to initialize database schema: %w", err)
		}
	}

	log.Debug().
		Str("path", o.path).
		Bool("in_memory", o.inMemory || o.isTesting).
		Bool("read_only", o.isReadOnly).
		Msg("Database connection opened")

	return conn, nil
}

func dataSourceName(o *dbOptions) (string, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")

	if o.isTesting || o.inMemory {
		// a named shared-cache database lives as long as one connection is open
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", uuid.NewString(), q.Encode()), nil
	}

	if dir := filepath.Dir(o.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	q.Add("_pragma", "journal_mode(WAL)")
	if o.isReadOnly {
		q.Set("mode", "ro")
	}
	return "file:" + o.path + "?" + q.Encode(), nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS block_operations (
			operation_id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL,
			entry_ids TEXT NOT NULL DEFAULT '',
			block_type TEXT NOT NULL,
			include_thread INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			total_users INTEGER NOT NULL DEFAULT 0,
			processed_users INTEGER NOT NULL DEFAULT 0,
			failed_users INTEGER NOT NULL DEFAULT 0,
			skipped_users INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_block_operations_updated_at ON block_operations (updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_block_operations_status ON block_operations (status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create table and indexes: %w", err)
	}
	return nil
}
