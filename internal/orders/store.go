package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
)

// Store persists orders. InTx runs fn as one atomic unit: if fn returns an
// error nothing it did is kept.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, orderID string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Purchases(ctx context.Context, userID string) ([]Purchase, error)
}

// Tx is the set of writes an order placement or status change may make.
type Tx interface {
	// DecrementStock is the conditional decrement; see
	// catalog.Store.DecrementIfAvailable. The returned product reflects the
	// row after the statement, or the available stock when ok is false.
	DecrementStock(ctx context.Context, productID string, qty int) (p catalog.Product, ok bool, err error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertPurchases(ctx context.Context, ps []Purchase) error
	RemoveCartLines(ctx context.Context, userID string, lineIDs []string) error
	Enqueue(ctx context.Context, m outbox.Message) error

	// LockOrder reads an order for update.
	LockOrder(ctx context.Context, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status, at time.Time) error
}
