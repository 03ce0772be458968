package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one product in a user's cart. UnitPrice is the catalog price
// captured when the product was first added; Stock is the product stock as of
// the read that produced the line.
type Line struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"-"`
	UserID       string          `json:"user_id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	Stock        int             `json:"stock"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	AddedAt      time.Time       `json:"added_at"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an immutable, insertion-ordered read of a cart.
type Snapshot struct {
	UserID  string    `json:"user_id"`
	Lines   []Line    `json:"lines"`
	TakenAt time.Time `json:"taken_at"`
}

func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

func (s Snapshot) Total() decimal.Decimal {
	t := decimal.Zero
	for _, l := range s.Lines {
		t = t.Add(l.Subtotal())
	}
	return t
}

func (s Snapshot) LineIDs() []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}
