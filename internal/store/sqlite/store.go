// Package sqlite keeps match results in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
  id       INTEGER PRIMARY KEY AUTOINCREMENT,
  room     TEXT    NOT NULL,
  ended_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
  match_id    INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
  participant TEXT    NOT NULL,
  name        TEXT    NOT NULL,
  slot        INTEGER NOT NULL,
  score       INTEGER NOT NULL,
  record      REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS results_record ON results(record DESC);
`

// Store persists finished matches in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.ResultStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordMatch inserts a match and its results in one transaction.
func (s *Store) RecordMatch(ctx context.Context, m store.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return store.ErrNotConfigured
	}
	if strings.TrimSpace(m.Room) == "" {
		return store.ErrNoRoom
	}
	endedAt := m.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (room, ended_at) VALUES (?, ?)`,
		m.Room, toMillis(endedAt),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("match id: %w", err)
	}
	for _, r := range m.Results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (match_id, participant, name, slot, score, record) VALUES (?, ?, ?, ?, ?, ?)`,
			matchID, r.Participant, r.Name, r.Slot, r.Score, r.Record,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Participant, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TopRecords returns the longest throws, best first. Participants who never
// threw are left out.
func (s *Store) TopRecords(ctx context.Context, limit int) ([]store.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrNotConfigured
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT participant, name, slot, score, record
		   FROM results
		  WHERE record >= 0
		  ORDER BY record DESC, score DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.Result
	for rows.Next() {
		var r store.Result
		if err := rows.Scan(&r.Participant, &r.Name, &r.Slot, &r.Score, &r.Record); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
