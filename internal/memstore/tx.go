package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
)

type memTx struct {
	st     *state
	faults map[string]error
}

func (t *memTx) fault(step string) error { return t.faults[step] }

func (t *memTx) DecrementStock(ctx context.Context, productID string, qty int) (catalog.Product, bool, error) {
	if err := t.fault("decrement"); err != nil {
		return catalog.Product{}, false, err
	}
	return decrement(t.st, productID, qty)
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if err := t.fault("insert_order"); err != nil {
		return err
	}
	if o.IdempotencyKey != "" {
		for _, existing := range t.st.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				return orders.ErrDuplicateOrder
			}
		}
	}
	t.st.orders[o.ID] = copyOrder(*o)
	t.st.orderSeq = append(t.st.orderSeq, o.ID)
	return nil
}

func (t *memTx) InsertPurchases(ctx context.Context, ps []orders.Purchase) error {
	if err := t.fault("insert_purchases"); err != nil {
		return err
	}
	t.st.purchases = append(t.st.purchases, ps...)
	return nil
}

func (t *memTx) RemoveCartLines(ctx context.Context, userID string, lineIDs []string) error {
	if err := t.fault("remove_cart_lines"); err != nil {
		return err
	}
	for _, id := range lineIDs {
		if l, ok := t.st.lines[id]; ok && l.UserID == userID {
			delete(t.st.lines, id)
		}
	}
	return nil
}

func (t *memTx) Enqueue(ctx context.Context, m outbox.Message) error {
	if err := t.fault("enqueue"); err != nil {
		return err
	}
	t.st.outboxSeq++
	t.st.outbox = append(t.st.outbox, outbox.Record{ID: t.st.outboxSeq, Message: m, CreatedAt: time.Now().UTC()})
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, orderID string, from, to orders.Status, at time.Time) error {
	if err := t.fault("update_status"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		return &orders.TransitionError{OrderID: orderID, From: o.Status, To: to}
	}
	o.Status, o.UpdatedAt = to, at
	t.st.orders[orderID] = o
	t.st.events = append(t.st.events, StatusEvent{OrderID: orderID, From: from, To: to, At: at})
	return nil
}
