package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"lobbysync/internal/config"
	"lobbysync/internal/store/pgstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestStore opens a Postgres store inside a throwaway schema that is
// dropped when the test finishes. The test is skipped when TEST_POSTGRES_DSN
// is not set.
func OpenTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	schema := fmt.Sprintf("%s_%d", cfg.SchemaPrefix, time.Now().UnixNano())
	if !schemaNamePattern.MatchString(schema) {
		t.Fatalf("schema %q is not a plain identifier", schema)
	}
	ident := pgx.Identifier{schema}.Sanitize()

	if err := execAdmin(cfg.TestPostgresDSN, "CREATE SCHEMA "+ident); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = execAdmin(cfg.TestPostgresDSN, "DROP SCHEMA "+ident+" CASCADE")
	})

	ctx := context.Background()
	st, err := pgstore.New(ctx, withSearchPath(cfg.TestPostgresDSN, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return st
}

// execAdmin runs one statement on a short-lived pool outside the test schema.
func execAdmin(dsn, stmt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, stmt)
	return err
}

func withSearchPath(dsn, schema string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value form
		return strings.TrimSpace(dsn) + " search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
