// Package store persists sent messages in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danmuck/smsctl/internal/dispatch"
)

var ErrClosed = errors.New("store: closed")

const schema = `
CREATE TABLE IF NOT EXISTS sent_messages (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	body       TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 1,
	type       INTEGER NOT NULL DEFAULT 2,
	date       INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sent_messages_created ON sent_messages(created_at);
`

// Message is one stored row.
type Message struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	Type      int       `json:"type"`
	Date      *int64    `json:"date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store implements dispatch.MessageStore on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path with WAL journaling and a
// busy timeout, then applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema on %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Insert(ctx context.Context, rec dispatch.Record) error {
	if s.db == nil {
		return ErrClosed
	}
	var date sql.NullInt64
	if rec.Date != nil {
		date = sql.NullInt64{Int64: *rec.Date, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_messages (id, address, body, read, type, date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.Address, rec.Body, boolInt(rec.Read), rec.Type, date, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", rec.Address, err)
	}
	return nil
}

// Recent returns up to limit messages, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Message, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, body, read, type, date, created_at FROM sent_messages
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m       Message
			read    int
			date    sql.NullInt64
			created int64
		)
		if err := rows.Scan(&m.ID, &m.Address, &m.Body, &read, &m.Type, &date, &created); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		m.Read = read != 0
		if date.Valid {
			v := date.Int64
			m.Date = &v
		}
		m.CreatedAt = time.UnixMilli(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sent_messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
