package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/memstore"
	"github.com/shopspring/decimal"
)

func newService(t *testing.T) (*cart.Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutProduct(catalog.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(10), Stock: 3})
	st.PutProduct(catalog.Product{ID: "p2", Name: "Gadget", Price: decimal.NewFromInt(5), Stock: 10})
	return cart.NewService(st, st, nil), st
}

func TestAddOrIncrement(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.AddOrIncrement(ctx, "u1", "p1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	l, err := svc.AddOrIncrement(ctx, "u1", "p1", 2)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if l.Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", l.Quantity)
	}

	var limit *cart.StockLimitError
	if _, err := svc.AddOrIncrement(ctx, "u1", "p1", 1); !errors.As(err, &limit) {
		t.Fatalf("over stock: %v", err)
	}
	if limit.Stock != 3 || limit.Requested != 4 {
		t.Fatalf("limit = %+v", limit)
	}
	if _, err := svc.AddOrIncrement(ctx, "u1", "p1", 0); !errors.Is(err, cart.ErrInvalidQuantity) {
		t.Fatalf("qty 0: %v", err)
	}
	if _, err := svc.AddOrIncrement(ctx, "u1", "missing", 1); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("missing product: %v", err)
	}
}

func TestPriceCapturedAtAdd(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	if _, err := svc.AddOrIncrement(ctx, "u1", "p2", 1); err != nil {
		t.Fatal(err)
	}
	st.PutProduct(catalog.Product{ID: "p2", Name: "Gadget", Price: decimal.NewFromInt(99), Stock: 10})
	l, err := svc.AddOrIncrement(ctx, "u1", "p2", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !l.UnitPrice.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unit price = %s, want 5", l.UnitPrice)
	}
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	l, _ := svc.AddOrIncrement(ctx, "u1", "p1", 1)

	tests := []struct {
		name string
		qty  int
		want error
	}{
		{"zero", 0, cart.ErrInvalidQuantity},
		{"negative", -1, cart.ErrInvalidQuantity},
		{"at stock", 3, nil},
		{"above stock", 4, &cart.StockLimitError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetQuantity(ctx, "u1", l.ID, tt.qty)
			switch want := tt.want.(type) {
			case nil:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case *cart.StockLimitError:
				if !errors.As(err, &want) {
					t.Fatalf("want StockLimitError, got %v", err)
				}
			default:
				if !errors.Is(err, want) {
					t.Fatalf("want %v, got %v", want, err)
				}
			}
		})
	}

	if _, err := svc.SetQuantity(ctx, "u2", l.ID, 1); !errors.Is(err, cart.ErrLineNotFound) {
		t.Fatalf("other user's line: %v", err)
	}
}

func TestIncrementDecrementBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	l, _ := svc.AddOrIncrement(ctx, "u1", "p1", 1)

	got, err := svc.Decrement(ctx, "u1", l.ID)
	if err != nil || got.Quantity != 1 {
		t.Fatalf("decrement at floor: qty=%d err=%v", got.Quantity, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Increment(ctx, "u1", l.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	var limit *cart.StockLimitError
	if _, err := svc.Increment(ctx, "u1", l.ID); !errors.As(err, &limit) {
		t.Fatalf("increment past stock: %v", err)
	}
}

func TestSnapshotOrderAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, _ := svc.AddOrIncrement(ctx, "u1", "p2", 2)
	b, _ := svc.AddOrIncrement(ctx, "u1", "p1", 1)
	_, _ = svc.AddOrIncrement(ctx, "u2", "p1", 1)

	snap, err := svc.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Lines) != 2 || snap.Lines[0].ID != a.ID || snap.Lines[1].ID != b.ID {
		t.Fatalf("snapshot order = %+v", snap.Lines)
	}
	if !snap.Total().Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total = %s", snap.Total())
	}

	if err := svc.Remove(ctx, "u1", a.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Remove(ctx, "u1", a.ID); !errors.Is(err, cart.ErrLineNotFound) {
		t.Fatalf("second remove: %v", err)
	}
	snap, _ = svc.Snapshot(ctx, "u1")
	if len(snap.Lines) != 1 {
		t.Fatalf("lines after remove = %d", len(snap.Lines))
	}
}

func TestStoreUnavailableLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	l, _ := svc.AddOrIncrement(ctx, "u1", "p1", 1)

	st.SetDown(true)
	if _, err := svc.SetQuantity(ctx, "u1", l.ID, 2); !errors.Is(err, cart.ErrStoreUnavailable) {
		t.Fatalf("set quantity while down: %v", err)
	}
	if _, err := svc.Snapshot(ctx, "u1"); !errors.Is(err, cart.ErrStoreUnavailable) {
		t.Fatalf("snapshot while down: %v", err)
	}
	st.SetDown(false)

	snap, _ := svc.Snapshot(ctx, "u1")
	if snap.Lines[0].Quantity != 1 {
		t.Fatalf("quantity changed to %d", snap.Lines[0].Quantity)
	}
}

// staleCatalog reports more stock than the store holds, like a read taken
// before another device's add landed.
type staleCatalog struct{ catalog.Store }

func (c staleCatalog) Get(ctx context.Context, id string) (catalog.Product, error) {
	p, err := c.Store.Get(ctx, id)
	p.Stock = 100
	return p, err
}

func TestStoreEnforcesStockCeiling(t *testing.T) {
	ctx := context.Background()
	_, st := newService(t)
	svc := cart.NewService(st, staleCatalog{st}, nil)

	l, err := svc.AddOrIncrement(ctx, "u1", "p1", 3)
	if err != nil {
		t.Fatal(err)
	}
	var limit *cart.StockLimitError
	if _, err := svc.AddOrIncrement(ctx, "u1", "p1", 1); !errors.As(err, &limit) || limit.Stock != 3 {
		t.Fatalf("add over stock: %v", err)
	}
	if _, err := svc.SetQuantity(ctx, "u1", l.ID, 5); !errors.As(err, &limit) {
		t.Fatalf("set over stock: %v", err)
	}
	snap, _ := svc.Snapshot(ctx, "u1")
	if snap.Lines[0].Quantity != 3 {
		t.Fatalf("quantity = %d", snap.Lines[0].Quantity)
	}
}

func TestConcurrentAddsStayWithinStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		limits int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddOrIncrement(ctx, "u1", "p1", 1)
			mu.Lock()
			defer mu.Unlock()
			var limit *cart.StockLimitError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &limit):
				limits++
			default:
				t.Errorf("unexpected: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := svc.Snapshot(ctx, "u1")
	if ok != 3 || limits != 7 || snap.Lines[0].Quantity != 3 {
		t.Fatalf("ok=%d limits=%d quantity=%d", ok, limits, snap.Lines[0].Quantity)
	}
}
