package redisx

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// testCache connects to TEST_REDIS_ADDR; the test is skipped when unset.
func testCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	return &Cache{R: rdb}
}

func TestSetStatusNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)
	id := uuid.NewString()

	for _, s := range []string{"pending", "shipped", "pending"} {
		if err := c.SetStatus(ctx, id, s); err != nil {
			t.Fatalf("set %s: %v", s, err)
		}
	}
	got, err := c.Status(ctx, id)
	if err != nil || got != "shipped" {
		t.Fatalf("status = %q err=%v", got, err)
	}

	if err := c.SetStatus(ctx, id, "delivered"); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Status(ctx, id); got != "delivered" {
		t.Fatalf("status = %q", got)
	}
}

func TestStatusMiss(t *testing.T) {
	c := testCache(t)
	if got, err := c.Status(context.Background(), uuid.NewString()); err != nil || got != "" {
		t.Fatalf("status = %q err=%v", got, err)
	}
}

func TestMarkProcessedAndForget(t *testing.T) {
	ctx := context.Background()
	c := testCache(t)
	id := uuid.NewString()

	if first, err := c.MarkProcessed(ctx, "svc", id); err != nil || !first {
		t.Fatalf("first mark: %v %v", first, err)
	}
	if first, _ := c.MarkProcessed(ctx, "svc", id); first {
		t.Fatal("second mark reported first")
	}
	if err := c.Forget(ctx, "svc", id); err != nil {
		t.Fatal(err)
	}
	if first, _ := c.MarkProcessed(ctx, "svc", id); !first {
		t.Fatal("mark after forget not first")
	}
}
