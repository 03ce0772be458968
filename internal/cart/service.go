package cart

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"go.uber.org/zap"
)

// Service applies cart rules on top of a Store. It holds no cart state of its
// own: every call reads and writes through the store.
type Service struct {
	Store   Store
	Catalog catalog.Store
	Log     *zap.Logger
}

func NewService(store Store, cat catalog.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Catalog: cat, Log: log}
}

func (s *Service) AddOrIncrement(ctx context.Context, userID, productID string, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, ErrInvalidQuantity
	}
	p, err := s.Catalog.Get(ctx, productID)
	if err != nil {
		return Line{}, err
	}

	lines, err := s.Store.Lines(ctx, userID)
	if err != nil {
		return Line{}, catalog.Unavailable(err)
	}
	want := qty
	for _, l := range lines {
		if l.ProductID == productID {
			want += l.Quantity
			break
		}
	}
	if want > p.Stock {
		return Line{}, &StockLimitError{ProductID: productID, Stock: p.Stock, Requested: want}
	}

	l, err := s.Store.AddOrIncrement(ctx, userID, productID, qty, p.Price)
	if err != nil {
		return Line{}, storeErr(err)
	}
	s.Log.Debug("cart line added", zap.String("user_id", userID), zap.String("product_id", productID), zap.Int("quantity", l.Quantity))
	return l, nil
}

// SetQuantity rejects qty < 1 and qty above the product's current stock.
func (s *Service) SetQuantity(ctx context.Context, userID, lineID string, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, ErrInvalidQuantity
	}
	l, err := s.line(ctx, userID, lineID)
	if err != nil {
		return Line{}, err
	}
	p, err := s.Catalog.Get(ctx, l.ProductID)
	if err != nil {
		return Line{}, err
	}
	if qty > p.Stock {
		return Line{}, &StockLimitError{ProductID: p.ID, Stock: p.Stock, Requested: qty}
	}
	if qty == l.Quantity {
		return l, nil
	}

	updated, err := s.Store.SetQuantity(ctx, userID, lineID, qty)
	if err != nil {
		return Line{}, storeErr(err)
	}
	return updated, nil
}

func (s *Service) Increment(ctx context.Context, userID, lineID string) (Line, error) {
	l, err := s.line(ctx, userID, lineID)
	if err != nil {
		return Line{}, err
	}
	return s.SetQuantity(ctx, userID, lineID, l.Quantity+1)
}

// Decrement stops at 1; removing the line is an explicit Remove.
func (s *Service) Decrement(ctx context.Context, userID, lineID string) (Line, error) {
	l, err := s.line(ctx, userID, lineID)
	if err != nil {
		return Line{}, err
	}
	if l.Quantity <= 1 {
		return l, nil
	}
	return s.SetQuantity(ctx, userID, lineID, l.Quantity-1)
}

func (s *Service) Remove(ctx context.Context, userID, lineID string) error {
	err := s.Store.Remove(ctx, userID, lineID)
	if err != nil && !errors.Is(err, ErrLineNotFound) {
		return catalog.Unavailable(err)
	}
	return err
}

func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	lines, err := s.Store.Lines(ctx, userID)
	if err != nil {
		return Snapshot{}, catalog.Unavailable(err)
	}
	return Snapshot{UserID: userID, Lines: lines, TakenAt: time.Now().UTC()}, nil
}

func (s *Service) line(ctx context.Context, userID, lineID string) (Line, error) {
	l, err := s.Store.Line(ctx, userID, lineID)
	if err != nil && !errors.Is(err, ErrLineNotFound) {
		return Line{}, catalog.Unavailable(err)
	}
	return l, err
}

// storeErr passes rule violations through and reports anything else as the
// store being unavailable.
func storeErr(err error) error {
	var limit *StockLimitError
	if errors.As(err, &limit) || errors.Is(err, ErrLineNotFound) || errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	return catalog.Unavailable(err)
}
