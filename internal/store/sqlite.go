package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// keepEvents bounds the events table; older rows are pruned periodically.
const (
	keepEvents = 5000
	pruneEvery = 100
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db      *sql.DB
	inserts atomic.Uint64
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) LoadCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT signal, last_alerted FROM signal_state`)
	if err != nil {
		return nil, fmt.Errorf("store: load counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		out[name] = count
	}
	return out, rows.Err()
}

func (s *SQLite) SaveCount(ctx context.Context, signal string, count int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signal_state(signal, last_alerted, updated_at) VALUES(?,?,?)
		 ON CONFLICT(signal) DO UPDATE SET last_alerted=excluded.last_alerted, updated_at=excluded.updated_at`,
		signal, count, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save count: %w", err)
	}
	return nil
}

func (s *SQLite) AppendEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, signal, kind, count, message, delivered, error, at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.ID, e.Signal, e.Kind, e.Count, e.Message, e.Delivered, nullStr(e.Error),
		e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	if s.inserts.Add(1)%pruneEvery == 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM events WHERE seq <= (SELECT MAX(seq) FROM events) - ?`, keepEvents); err != nil {
			log.Warn().Err(err).Msg("store: prune events failed")
		}
	}
	return nil
}

func (s *SQLite) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = MaxHistory
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, signal, kind, count, message, delivered, error, at
		 FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			errText sql.NullString
			at      string
		)
		if err := rows.Scan(&e.ID, &e.Signal, &e.Kind, &e.Count, &e.Message, &e.Delivered, &errText, &at); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Error = errText.String
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
