package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Status         Status          `json:"status"` // lihat status.go
	Total          decimal.Decimal `json:"total"`
	Shipping       Shipping        `json:"shipping"`
	Lines          []OrderLine     `json:"lines"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Replayed is set when PlaceOrder returned an order created by an earlier
	// call with the same idempotency key.
	Replayed bool `json:"replayed,omitempty"`
}

// OrderLine is frozen at purchase time and never follows later product edits.
type OrderLine struct {
	OrderID      string          `json:"order_id"`
	Position     int             `json:"position"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Shipping is the locker the order ships through.
type Shipping struct {
	Country     string          `json:"country,omitempty"`
	LockerType  string          `json:"locker_type,omitempty"`
	LockerPrice decimal.Decimal `json:"locker_price"`
}

// Purchase is one purchase-history row, written per order line.
type Purchase struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	PaidPrice decimal.Decimal `json:"paid_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Shipping  Shipping        `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
}

// Checkout carries the per-call options of PlaceOrder.
type Checkout struct {
	IdempotencyKey string
	Shipping       Shipping
	TraceID        string
}

// SumLines is the only valid Order.Total.
func SumLines(lines []OrderLine) decimal.Decimal {
	t := decimal.Zero
	for _, l := range lines {
		t = t.Add(l.Subtotal)
	}
	return t
}
