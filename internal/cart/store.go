package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound     = errors.New("cart line not found")
	ErrInvalidQuantity  = catalog.ErrInvalidQuantity
	ErrStoreUnavailable = catalog.ErrStoreUnavailable
)

// StockLimitError rejects a quantity above the product's known stock.
type StockLimitError struct {
	ProductID string
	Stock     int
	Requested int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("product %s: requested %d, only %d in stock", e.ProductID, e.Requested, e.Stock)
}

// Store persists cart lines. Every method scopes by userID; a line belonging
// to another user is reported as ErrLineNotFound.
type Store interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	Line(ctx context.Context, userID, lineID string) (Line, error)
	// AddOrIncrement inserts a line priced at unitPrice, or adds qty to the
	// existing line for the product keeping its original price. The stock
	// ceiling is checked in the same write: a resulting quantity above the
	// product's stock fails with *StockLimitError and changes nothing.
	AddOrIncrement(ctx context.Context, userID, productID string, qty int, unitPrice decimal.Decimal) (Line, error)
	// SetQuantity has the same ceiling as AddOrIncrement.
	SetQuantity(ctx context.Context, userID, lineID string, qty int) (Line, error)
	Remove(ctx context.Context, userID, lineID string) error
}
