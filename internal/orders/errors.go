package orders

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("order not found")
	ErrInvalidStatus    = errors.New("unknown order status")
	ErrStoreUnavailable = catalog.ErrStoreUnavailable

	// ErrDuplicateOrder is returned by Tx.InsertOrder when the user already
	// has an order under the same idempotency key.
	ErrDuplicateOrder = errors.New("duplicate idempotency key")
)

// InsufficientStockError fails a whole placement because one line asks for
// more than the product has.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// PersistenceError means the commit failed and left nothing behind. Retry
// the whole PlaceOrder call.
type PersistenceError struct{ Err error }

func (e *PersistenceError) Error() string { return "persist order: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

type TransitionError struct {
	OrderID  string
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}
