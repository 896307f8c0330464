package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/ports"
)

// SQLiteRepository persists processed-message records for restart-safe
// deduplication and audit.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if necessary) the database at path and
// ensures the schema exists.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	const schema = `
PRAGMA journal_mode = WAL;
PRAGMA busy_timeout = 5000;
CREATE TABLE IF NOT EXISTS processed_messages (
	message_id   TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	subject      TEXT NOT NULL,
	urgency      INTEGER NOT NULL,
	outcome      TEXT NOT NULL,
	processed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_messages_processed_at
	ON processed_messages (processed_at);
`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Seen reports which of the given message IDs already have a stored record.
func (r *SQLiteRepository) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}

	query, args, err := sq.Select("message_id").
		From("processed_messages").
		Where(sq.Eq{"message_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen row: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen rows: %w", err)
	}
	return seen, nil
}

// SaveProcessed upserts the audit record; re-recording a message with a new
// outcome (pending -> approved, for example) overwrites the previous row.
func (r *SQLiteRepository) SaveProcessed(ctx context.Context, rec domain.ProcessedMessage) error {
	processedAt := rec.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	query, args, err := sq.Insert("processed_messages").
		Columns("message_id", "sender", "subject", "urgency", "outcome", "processed_at").
		Values(rec.MessageID, rec.Sender, rec.Subject, int(rec.Urgency), string(rec.Outcome), processedAt.Unix()).
		Suffix(`ON CONFLICT (message_id) DO UPDATE SET
			urgency = excluded.urgency,
			outcome = excluded.outcome,
			processed_at = excluded.processed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save processed message %s: %w", rec.MessageID, err)
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
