// Package journal keeps a SQLite history of finished jobs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/eslint-node/internal/storage"
)

const maxErrorBytes = 16 * 1024

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Outcome values besides the typed failure kinds.
const (
	OutcomeOK     = "ok"
	OutcomeKilled = "killed"
)

// Entry is one finished job.
type Entry struct {
	ID            string        `json:"id"`
	Key           string        `json:"key"`
	Type          string        `json:"type"`
	FilePath      string        `json:"file_path"`
	ProjectPath   string        `json:"project_path,omitempty"`
	ContentDigest string        `json:"content_digest,omitempty"`
	Outcome       string        `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	MessageCount  int           `json:"message_count"`
	FixCount      *int          `json:"fix_count,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Store writes and reads journal entries.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an already-open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e, filling in ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("job key is empty")
	}
	if e.Type == "" {
		return fmt.Errorf("job type is empty")
	}
	if e.Outcome == "" {
		return fmt.Errorf("outcome is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var errText any
	if e.Error != "" {
		errText = truncate(e.Error, maxErrorBytes)
	}
	var digest any
	if e.ContentDigest != "" {
		digest = e.ContentDigest
	}
	var fixCount any
	if e.FixCount != nil {
		fixCount = *e.FixCount
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_journal(
  id, job_key, job_type, file_path, project_path, content_digest, outcome, error,
  message_count, fix_count, duration_ms, created_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Key, e.Type, e.FilePath, e.ProjectPath, digest, e.Outcome, errText,
		e.MessageCount, fixCount, e.Duration.Milliseconds(), e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert job_journal: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// defaults to 50.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, job_key, job_type, file_path, project_path, content_digest, outcome, error,
  message_count, fix_count, duration_ms, created_at
FROM job_journal
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query job_journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			digest     sql.NullString
			errText    sql.NullString
			fixCount   sql.NullInt64
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.Key, &e.Type, &e.FilePath, &e.ProjectPath, &digest, &e.Outcome, &errText,
			&e.MessageCount, &fixCount, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan job_journal: %w", err)
		}
		e.ContentDigest = digest.String
		e.Error = errText.String
		if fixCount.Valid {
			n := int(fixCount.Int64)
			e.FixCount = &n
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job_journal: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than retention and returns how many went.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_journal WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune job_journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
