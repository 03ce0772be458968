package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is read-mostly; Stock is authoritative and only ever lowered through
// DecrementIfAvailable.
type Store interface {
	Get(ctx context.Context, productID string) (Product, error)
	// List yields products lazily. Ranging over the sequence again re-reads
	// the store.
	List(ctx context.Context, f Filter) iter.Seq2[Product, error]
	// DecrementIfAvailable lowers stock by qty only when stock >= qty, as one
	// indivisible step. It reports false when stock is short.
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, error)
}

// Unavailable marks err as a store read failure.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Collect drains a List sequence.
func Collect(seq iter.Seq2[Product, error]) ([]Product, error) {
	var out []Product
	for p, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
