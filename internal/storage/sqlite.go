package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path,
// refusing network filesystems, and ensures the journal tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := requireLocalFS(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The daemon is the only writer; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS job_journal (
  id             TEXT PRIMARY KEY,
  job_key        TEXT NOT NULL,
  job_type       TEXT NOT NULL,
  file_path      TEXT NOT NULL,
  project_path   TEXT NOT NULL DEFAULT '',
  content_digest TEXT,
  outcome        TEXT NOT NULL,
  error          TEXT,
  message_count  INTEGER NOT NULL DEFAULT 0,
  fix_count      INTEGER,
  duration_ms    INTEGER NOT NULL DEFAULT 0,
  created_at     TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS job_journal_created_at_idx ON job_journal(created_at);`,
		`CREATE INDEX IF NOT EXISTS job_journal_file_path_idx ON job_journal(file_path, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
