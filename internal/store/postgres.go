package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const notifyChannel = "room_changes"

// Postgres stores one JSONB document per room. Writes lock the affected rows,
// and every commit announces the changed keys with pg_notify so subscribers
// on other server processes see them too.
type Postgres struct {
	Pool *pgxpool.Pool
	hub  *hub

	listenCancel context.CancelFunc
	listenDone   chan struct{}
	closeOnce    sync.Once
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p := &Postgres{Pool: pool}
	p.hub = newHub(p.ReadOnce)
	return p, nil
}

// Listen starts relaying change notifications from other processes. Without
// it only writes made through this value reach local subscribers.
func (p *Postgres) Listen(ctx context.Context) error {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return err
	}
	lctx, cancel := context.WithCancel(context.Background())
	p.listenCancel = cancel
	p.listenDone = make(chan struct{})
	go func() {
		defer close(p.listenDone)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(lctx)
			if err != nil {
				if lctx.Err() == nil {
					log.Error().Err(err).Msg("postgres listen stopped")
				}
				return
			}
			p.hub.notify(n.Payload)
		}
	}()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Subscribe(ctx context.Context, path string, onValue ValueFunc, onError ErrorFunc) (func(), error) {
	return p.hub.subscribe(ctx, path, onValue, onError)
}

func (p *Postgres) ReadOnce(ctx context.Context, path string) (any, bool, error) {
	key, rest, err := docKey(path)
	if err != nil {
		return nil, false, err
	}
	doc, err := loadPG(ctx, p.Pool, key, false)
	if err != nil {
		return nil, false, err
	}
	v, ok := lookup(doc, rest)
	return v, ok, nil
}

func (p *Postgres) Write(ctx context.Context, path string, value any) error {
	return p.MultiUpdate(ctx, map[string]any{path: value})
}

func (p *Postgres) Remove(ctx context.Context, path string) error {
	return p.MultiUpdate(ctx, map[string]any{path: nil})
}

func (p *Postgres) MultiUpdate(ctx context.Context, updates map[string]any) (err error) {
	defer func() {
		if err != nil {
			metricWriteErrors.Add(1)
		}
	}()
	groups, keys, err := groupUpdates(updates)
	if err != nil || len(keys) == 0 {
		return err
	}
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, key := range keys {
		doc, err := loadPG(ctx, tx, key, true)
		if err != nil {
			return err
		}
		doc = applyUpdates(doc, groups[key])
		if doc == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key); err != nil {
				return err
			}
		} else {
			b, err := encodeDoc(doc)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
INSERT INTO documents (key, doc, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, key, string(b)); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, key); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	metricWritesTotal.Add(1)
	for _, key := range keys {
		p.hub.notify(key)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, path string) ([]string, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) > 1 {
		v, ok, err := p.ReadOnce(ctx, path)
		if err != nil || !ok {
			return []string{}, err
		}
		return objectKeys(v), nil
	}
	rows, err := p.Pool.Query(ctx, `SELECT key FROM documents WHERE key LIKE $1 ORDER BY key`, segs[0]+"/%")
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return childKeys(keys, segs[0]), nil
}

func (p *Postgres) Close() error {
	p.closeOnce.Do(func() {
		p.hub.close()
		if p.listenCancel != nil {
			p.listenCancel()
			<-p.listenDone
		}
		p.Pool.Close()
	})
	return nil
}

type pgQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadPG(ctx context.Context, q pgQueryer, key string, forUpdate bool) (map[string]any, error) {
	query := `SELECT doc::text FROM documents WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var raw string
	err := q.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return decodeDoc([]byte(raw))
}
