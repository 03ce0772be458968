// Package pgtest opens the Postgres database used by repository tests.
//
// Tests run only when TEST_POSTGRES_DSN is set. Packages share the database
// and may run in parallel, so tests create rows under fresh ids instead of
// truncating tables.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrateLock serializes schema setup across test binaries.
const migrateLock = 7342001

func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrateLock); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer func() { _, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrateLock) }()
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// ID returns a fresh id with a readable prefix.
func ID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Product inserts a product and returns its id.
func Product(t testing.TB, pool *pgxpool.Pool, typ, price string, stock int) string {
	t.Helper()
	id := ID("prod")
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products(id, name, type, price, stock, image_url)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`, id, "product "+id, typ, price, stock, id+".png")
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}
