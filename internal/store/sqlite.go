package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    doc        TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);`

// SQLite stores one JSON document per room in a local database file.
// Subscribers are notified in process after each commit.
type SQLite struct {
	db  *sql.DB
	hub *hub
}

func NewSQLite(dbPath string) (*SQLite, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{`PRAGMA busy_timeout = 5000;`, `PRAGMA journal_mode = WAL;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLite{db: db}
	s.hub = newHub(s.ReadOnce)
	return s, nil
}

func (s *SQLite) Subscribe(ctx context.Context, path string, onValue ValueFunc, onError ErrorFunc) (func(), error) {
	return s.hub.subscribe(ctx, path, onValue, onError)
}

func (s *SQLite) ReadOnce(ctx context.Context, path string) (any, bool, error) {
	key, rest, err := docKey(path)
	if err != nil {
		return nil, false, err
	}
	doc, err := s.load(ctx, s.db, key)
	if err != nil {
		return nil, false, err
	}
	v, ok := lookup(doc, rest)
	return v, ok, nil
}

func (s *SQLite) Write(ctx context.Context, path string, value any) error {
	return s.MultiUpdate(ctx, map[string]any{path: value})
}

func (s *SQLite) Remove(ctx context.Context, path string) error {
	return s.MultiUpdate(ctx, map[string]any{path: nil})
}

func (s *SQLite) MultiUpdate(ctx context.Context, updates map[string]any) (err error) {
	defer func() {
		if err != nil {
			metricWriteErrors.Add(1)
		}
	}()
	groups, keys, err := groupUpdates(updates)
	if err != nil || len(keys) == 0 {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, key := range keys {
		doc, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		doc = applyUpdates(doc, groups[key])
		if doc == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
				return err
			}
			continue
		}
		b, err := encodeDoc(doc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (key, doc, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`, key, string(b), now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metricWritesTotal.Add(1)
	for _, key := range keys {
		s.hub.notify(key)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context, path string) ([]string, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) > 1 {
		v, ok, err := s.ReadOnce(ctx, path)
		if err != nil || !ok {
			return []string{}, err
		}
		return objectKeys(v), nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM documents WHERE key LIKE ? ORDER BY key`, segs[0]+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return childKeys(keys, segs[0]), nil
}

func (s *SQLite) Close() error {
	s.hub.close()
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) load(ctx context.Context, q queryer, key string) (map[string]any, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT doc FROM documents WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc([]byte(raw))
}
