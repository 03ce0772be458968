package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to orders.Status
		want     bool
	}{
		{orders.StatusPending, orders.StatusShipped, true},
		{orders.StatusShipped, orders.StatusDelivered, true},
		{orders.StatusPending, orders.StatusCancelled, true},
		{orders.StatusShipped, orders.StatusCancelled, true},
		{orders.StatusPending, orders.StatusDelivered, false},
		{orders.StatusShipped, orders.StatusPending, false},
		{orders.StatusDelivered, orders.StatusCancelled, false},
		{orders.StatusCancelled, orders.StatusPending, false},
	}
	for _, tt := range tests {
		if got := orders.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusSupersedes(t *testing.T) {
	tests := []struct {
		next, cur orders.Status
		want      bool
	}{
		{orders.StatusShipped, orders.StatusPending, true},
		{orders.StatusPending, orders.StatusShipped, false},
		{orders.StatusPending, orders.StatusPending, false},
		{orders.StatusCancelled, orders.StatusShipped, true},
		{orders.StatusDelivered, orders.StatusShipped, true},
		{orders.StatusShipped, orders.StatusDelivered, false},
		{orders.StatusPending, "", true},
	}
	for _, tt := range tests {
		if got := tt.next.Supersedes(tt.cur); got != tt.want {
			t.Errorf("%q.Supersedes(%q) = %v, want %v", tt.next, tt.cur, got, tt.want)
		}
	}
}

func TestServiceTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, product("a", 10, 5))
	f.add(t, "u1", "a", 1)
	o, err := f.engine.PlaceOrder(ctx, "u1", f.snapshot(t, "u1"), orders.Checkout{})
	if err != nil {
		t.Fatal(err)
	}
	svc := orders.NewService(f.st.OrderStore(), nil, "test")

	got, err := svc.Transition(ctx, o.ID, orders.StatusShipped, "")
	if err != nil || got.Status != orders.StatusShipped {
		t.Fatalf("ship: %v %+v", err, got)
	}

	var te *orders.TransitionError
	if _, err := svc.Transition(ctx, o.ID, orders.StatusPending, ""); !errors.As(err, &te) {
		t.Fatalf("back to pending: %v", err)
	}
	if _, err := svc.Transition(ctx, o.ID, orders.StatusDelivered, ""); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := svc.Transition(ctx, o.ID, orders.StatusCancelled, ""); !errors.As(err, &te) {
		t.Fatalf("cancel delivered: %v", err)
	}
	if _, err := svc.Transition(ctx, o.ID, orders.Status("returned"), ""); !errors.Is(err, orders.ErrInvalidStatus) || errors.As(err, &te) {
		t.Fatalf("unknown status: %v", err)
	}
	if _, err := svc.Transition(ctx, "missing", orders.StatusShipped, ""); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}

	events := f.st.StatusEvents()
	if len(events) != 2 || events[0].To != orders.StatusShipped || events[1].To != orders.StatusDelivered {
		t.Fatalf("status events = %+v", events)
	}
	var changed int
	for _, r := range f.st.OutboxRecords() {
		if r.Topic == orders.TopicOrderStatusChanged {
			changed++
		}
	}
	if changed != 2 {
		t.Fatalf("status events in outbox = %d", changed)
	}
}

func TestServiceQueriesAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, product("a", 10, 5))
	f.add(t, "u1", "a", 1)
	o, err := f.engine.PlaceOrder(ctx, "u1", f.snapshot(t, "u1"), orders.Checkout{})
	if err != nil {
		t.Fatal(err)
	}
	f.add(t, "u1", "a", 1)
	second, err := f.engine.PlaceOrder(ctx, "u1", f.snapshot(t, "u1"), orders.Checkout{})
	if err != nil {
		t.Fatal(err)
	}
	svc := orders.NewService(f.st.OrderStore(), nil, "test")

	if _, err := svc.Get(ctx, "u2", o.ID); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	list, err := svc.ListByUser(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %d err=%v", len(list), err)
	}
	if list[0].ID != second.ID {
		t.Fatal("list is not newest first")
	}
	if _, err := svc.ListByUser(ctx, ""); !errors.Is(err, orders.ErrNotAuthenticated) {
		t.Fatalf("anonymous list: %v", err)
	}

	f.st.SetDown(true)
	if _, err := svc.ListByUser(ctx, "u1"); !errors.Is(err, orders.ErrStoreUnavailable) {
		t.Fatalf("list while down: %v", err)
	}
}
