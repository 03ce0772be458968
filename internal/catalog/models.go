package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Filter narrows List. Zero value lists everything.
type Filter struct {
	Type string
}

func (f Filter) Match(p Product) bool {
	return f.Type == "" || f.Type == p.Type
}
