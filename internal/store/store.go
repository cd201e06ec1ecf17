// Package store persists a per-request audit trail so degraded traffic and
// provider usage can be inspected after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/resumekit/airouter/internal/llm"
)

// RequestRecord is one routed request's audit entry.
type RequestRecord struct {
	ID               string       `json:"id"`
	Time             time.Time    `json:"time"`
	Provider         string       `json:"provider"`
	Model            string       `json:"model"`
	Task             llm.TaskKind `json:"task,omitempty"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	TotalTokens      int          `json:"total_tokens"`
	DurationMS       int64        `json:"duration_ms"`
	Degraded         bool         `json:"degraded"`
	Stream           bool         `json:"stream"`
	ErrorClass       string       `json:"error_class,omitempty"`
}

// Store records routed requests.
type Store interface {
	Record(ctx context.Context, rec RequestRecord) error
	Recent(ctx context.Context, limit int) ([]RequestRecord, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	time INTEGER NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	task TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	degraded INTEGER NOT NULL DEFAULT 0,
	stream INTEGER NOT NULL DEFAULT 0,
	error_class TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_requests_time ON requests(time);
CREATE INDEX IF NOT EXISTS idx_requests_provider ON requests(provider);
`

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the audit database. Use ":memory:"
// for an ephemeral store.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record inserts one request entry.
func (s *SQLiteStore) Record(ctx context.Context, rec RequestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
			(id, time, provider, model, task, prompt_tokens, completion_tokens,
			 total_tokens, duration_ms, degraded, stream, error_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Time.UnixMilli(), rec.Provider, rec.Model, string(rec.Task),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.DurationMS, boolToInt(rec.Degraded), boolToInt(rec.Stream), rec.ErrorClass)
	if err != nil {
		return fmt.Errorf("failed to record request %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time, provider, model, task, prompt_tokens, completion_tokens,
		       total_tokens, duration_ms, degraded, stream, error_class
		FROM requests ORDER BY time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var ts int64
		var task string
		var degraded, stream int
		if err := rows.Scan(&rec.ID, &ts, &rec.Provider, &rec.Model, &task,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.DurationMS, &degraded, &stream, &rec.ErrorClass); err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		rec.Time = time.UnixMilli(ts)
		rec.Task = llm.TaskKind(task)
		rec.Degraded = degraded != 0
		rec.Stream = stream != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NopStore discards all records. Used when no store path is configured.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) Record(ctx context.Context, rec RequestRecord) error { return nil }
func (NopStore) Recent(ctx context.Context, limit int) ([]RequestRecord, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }
