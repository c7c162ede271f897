// Package testutil provisions throwaway Postgres stores for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chiptally/internal/config"
	"chiptally/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const initMigration = "000001_init.up.sql"

// OpenTestStore returns a Postgres store living in its own schema, with the
// init migration applied. The schema is dropped when the test ends. Without
// TEST_POSTGRES_DSN the test is skipped.
func OpenTestStore(t *testing.T) *store.Postgres {
	t.Helper()
	cfg, err := config.LoadTestStore()
	if err != nil {
		t.Skipf("skip postgres store: %v", err)
	}
	ctx := context.Background()
	schema := fmt.Sprintf("chiptally_test_%d", time.Now().UnixNano())
	ident := pgx.Identifier{schema}.Sanitize()

	if err := execAdmin(ctx, cfg.PostgresDSN, "CREATE SCHEMA "+ident); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = execAdmin(context.Background(), cfg.PostgresDSN, "DROP SCHEMA "+ident+" CASCADE")
	})

	st, err := store.NewPostgres(ctx, withSearchPath(cfg.PostgresDSN, schema))
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ddl, err := readMigration(initMigration)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := st.Pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return st
}

func execAdmin(ctx context.Context, dsn, sql string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, sql)
	return err
}

// readMigration finds migrations/<name> in the working directory or one of
// its parents, so tests in any package can use it.
func readMigration(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		raw, err := os.ReadFile(filepath.Join(dir, "migrations", name))
		if err == nil {
			return string(raw), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("migrations/%s not found", name)
		}
		dir = parent
	}
}

func withSearchPath(dsn, schema string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn + " search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
