package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"go.uber.org/zap"
)

// Service serves the order history views and administrative status changes.
// It never creates orders; that is Engine's job.
type Service struct {
	Store    Store
	Log      *zap.Logger
	Producer string
}

func NewService(store Store, log *zap.Logger, producer string) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Log: log, Producer: producer}
}

// Get returns the order only to its owner.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, readErr(err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListByUser returns the user's orders newest first, lines included.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	out, err := s.Store.ListByUser(ctx, userID)
	return out, readErr(err)
}

func (s *Service) Purchases(ctx context.Context, userID string) ([]Purchase, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	out, err := s.Store.Purchases(ctx, userID)
	return out, readErr(err)
}

// Transition moves an order along pending -> shipped -> delivered, or to
// cancelled from pending or shipped. The change and its OrderStatusChanged
// event commit together.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, traceID string) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	var out *Order
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return &TransitionError{OrderID: orderID, From: o.Status, To: to}
		}
		now := time.Now().UTC()
		if err := tx.UpdateStatus(ctx, orderID, o.Status, to, now); err != nil {
			return err
		}
		msg, err := toMessage(EventOrderStatusChanged, TopicOrderStatusChanged, s.Producer, traceID, orderID,
			OrderStatusChangedPayload{OrderID: orderID, UserID: o.UserID, From: o.Status, To: to})
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, msg); err != nil {
			return err
		}
		from := o.Status
		o.Status, o.UpdatedAt = to, now
		out = o
		s.Log.Info("order status changed", zap.String("order_id", orderID), zap.String("from", string(from)), zap.String("to", string(to)))
		return nil
	})

	var te *TransitionError
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrNotFound), errors.As(err, &te):
		return nil, err
	default:
		return nil, &PersistenceError{Err: err}
	}
}

func readErr(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return catalog.Unavailable(err)
}
