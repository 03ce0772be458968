package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/postgres/pgtest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgFixture struct {
	pool   *pgxpool.Pool
	cat    *catalog.Repo
	repo   *orders.Repo
	cart   *cart.Service
	engine *orders.Engine
}

func newPGFixture(t *testing.T) *pgFixture {
	pool := pgtest.Open(t)
	cat := &catalog.Repo{DB: pool}
	repo := &orders.Repo{DB: pool}
	return &pgFixture{
		pool:   pool,
		cat:    cat,
		repo:   repo,
		cart:   cart.NewService(&cart.Repo{DB: pool}, cat, nil),
		engine: orders.NewEngine(cat, repo, nil, "test"),
	}
}

func (f *pgFixture) fill(t *testing.T, userID, productID string, qty int) cart.Snapshot {
	t.Helper()
	ctx := context.Background()
	if _, err := f.cart.AddOrIncrement(ctx, userID, productID, qty); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap, err := f.cart.Snapshot(ctx, userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func (f *pgFixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := f.pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRepoPlaceOrderCommitsEverything(t *testing.T) {
	ctx := context.Background()
	f := newPGFixture(t)
	user := pgtest.ID("user")
	pid := pgtest.Product(t, f.pool, "", "12.50", 4)

	o, err := f.engine.PlaceOrder(ctx, user, f.fill(t, user, pid, 3), orders.Checkout{IdempotencyKey: "k1"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Total.Equal(decimal.RequireFromString("37.50")) {
		t.Fatalf("total = %s", o.Total)
	}

	p, err := f.cat.Get(ctx, pid)
	if err != nil || p.Stock != 1 {
		t.Fatalf("stock = %d err=%v", p.Stock, err)
	}
	if n := f.count(t, `SELECT count(*) FROM cart_items WHERE user_id=$1`, user); n != 0 {
		t.Fatalf("cart lines left = %d", n)
	}
	if n := f.count(t, `SELECT count(*) FROM outbox WHERE key=$1 AND topic=$2`, o.ID, orders.TopicOrderPlaced); n != 1 {
		t.Fatalf("outbox rows = %d", n)
	}
	purchases, err := f.repo.Purchases(ctx, user)
	if err != nil || len(purchases) != 1 || purchases[0].Quantity != 3 {
		t.Fatalf("purchases = %+v err=%v", purchases, err)
	}

	got, err := f.repo.Get(ctx, o.ID)
	if err != nil || len(got.Lines) != 1 || got.Lines[0].Quantity != 3 || got.Status != orders.StatusPending {
		t.Fatalf("stored order = %+v err=%v", got, err)
	}

	again, err := f.engine.PlaceOrder(ctx, user, f.fill(t, user, pid, 1), orders.Checkout{IdempotencyKey: "k1"})
	if err != nil || !again.Replayed || again.ID != o.ID {
		t.Fatalf("replay = %+v err=%v", again, err)
	}
}

func TestRepoDuplicateKeyIsErrDuplicateOrder(t *testing.T) {
	ctx := context.Background()
	f := newPGFixture(t)
	user := pgtest.ID("user")

	insert := func() error {
		now := time.Now()
		return f.repo.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			return tx.InsertOrder(ctx, &orders.Order{
				ID: uuid.NewString(), UserID: user, IdempotencyKey: "same", Status: orders.StatusPending,
				Total: decimal.Zero, CreatedAt: now, UpdatedAt: now,
			})
		})
	}
	if err := insert(); err != nil {
		t.Fatal(err)
	}
	if err := insert(); !errors.Is(err, orders.ErrDuplicateOrder) {
		t.Fatalf("second insert: %v", err)
	}
	if n := f.count(t, `SELECT count(*) FROM orders WHERE user_id=$1`, user); n != 1 {
		t.Fatalf("orders = %d", n)
	}
}

func TestRepoConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newPGFixture(t)
	pid := pgtest.Product(t, f.pool, "", "1.00", 3)

	const buyers = 8
	snaps := make([]cart.Snapshot, buyers)
	users := make([]string, buyers)
	for i := range snaps {
		users[i] = pgtest.ID("user")
		snaps[i] = f.fill(t, users[i], pid, 1)
	}

	var mu sync.Mutex
	var placed, short int
	var wg sync.WaitGroup
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.PlaceOrder(ctx, users[i], snaps[i], orders.Checkout{})
			var se *orders.InsufficientStockError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.As(err, &se):
				short++
			default:
				t.Errorf("checkout: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if placed != 3 || short != buyers-3 {
		t.Fatalf("placed=%d short=%d", placed, short)
	}
	p, err := f.cat.Get(ctx, pid)
	if err != nil || p.Stock != 0 {
		t.Fatalf("stock = %d err=%v", p.Stock, err)
	}
}

func TestRepoTransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	f := newPGFixture(t)
	user := pgtest.ID("user")
	o, err := f.engine.PlaceOrder(ctx, user, f.fill(t, user, pgtest.Product(t, f.pool, "", "1.00", 1), 1), orders.Checkout{})
	if err != nil {
		t.Fatal(err)
	}
	svc := orders.NewService(f.repo, nil, "test")

	if _, err := svc.Transition(ctx, o.ID, orders.StatusShipped, ""); err != nil {
		t.Fatal(err)
	}
	var te *orders.TransitionError
	if _, err := svc.Transition(ctx, o.ID, orders.StatusPending, ""); !errors.As(err, &te) {
		t.Fatalf("backwards: %v", err)
	}
	if n := f.count(t, `SELECT count(*) FROM order_status_events WHERE order_id::text=$1`, o.ID); n != 1 {
		t.Fatalf("status events = %d", n)
	}
	if _, err := svc.Transition(ctx, uuid.NewString(), orders.StatusShipped, ""); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}
