package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCommitTimeout = 5 * time.Second

// Engine turns a cart snapshot into an order.
type Engine struct {
	Catalog catalog.Store
	Store   Store
	Log     *zap.Logger
	// Producer names this service in event envelopes.
	Producer      string
	CommitTimeout time.Duration
}

func NewEngine(cat catalog.Store, store Store, log *zap.Logger, producer string) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Catalog: cat, Store: store, Log: log, Producer: producer, CommitTimeout: defaultCommitTimeout}
}

// demand is the quantity a placement takes from one product.
type demand struct {
	productID string
	qty       int
}

// PlaceOrder validates snap against current stock, then in one transaction
// decrements stock, writes the order with its lines and purchase history,
// enqueues an OrderPlaced event and removes the snapshot's cart lines.
//
// The call can be cancelled through ctx until the commit starts; the commit
// itself is detached from ctx and bounded by CommitTimeout.
func (e *Engine) PlaceOrder(ctx context.Context, userID string, snap cart.Snapshot, co Checkout) (*Order, error) {
	if userID == "" || (snap.UserID != "" && snap.UserID != userID) {
		return nil, ErrNotAuthenticated
	}
	if snap.Empty() {
		return nil, ErrEmptyCart
	}
	for _, l := range snap.Lines {
		if l.Quantity < 1 {
			return nil, cart.ErrInvalidQuantity
		}
	}

	if co.IdempotencyKey != "" {
		o, err := e.Store.FindByIdempotencyKey(ctx, userID, co.IdempotencyKey)
		if err == nil {
			o.Replayed = true
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, catalog.Unavailable(err)
		}
	}

	demands := aggregate(snap.Lines)
	products, err := e.checkStock(ctx, demands)
	if err != nil {
		if o, ok := e.replayOnShortage(ctx, userID, co.IdempotencyKey, err); ok {
			return o, nil
		}
		return nil, err
	}

	o := buildOrder(userID, snap, co, products)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := e.CommitTimeout
	if timeout <= 0 {
		timeout = defaultCommitTimeout
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err = e.Store.InTx(commitCtx, func(ctx context.Context, tx Tx) error {
		return e.commit(ctx, tx, o, snap, demands, co.TraceID)
	})

	var stockErr *InsufficientStockError
	switch {
	case err == nil:
	case errors.As(err, &stockErr):
		if existing, ok := e.replayOnShortage(commitCtx, userID, co.IdempotencyKey, err); ok {
			return existing, nil
		}
		e.Log.Info("order rejected", zap.String("user_id", userID), zap.String("product_id", stockErr.ProductID),
			zap.Int("available", stockErr.Available), zap.Int("requested", stockErr.Requested))
		return nil, err
	case errors.Is(err, ErrDuplicateOrder):
		// lost the race against a concurrent call with the same key
		existing, ferr := e.Store.FindByIdempotencyKey(commitCtx, userID, co.IdempotencyKey)
		if ferr != nil {
			return nil, &PersistenceError{Err: ferr}
		}
		existing.Replayed = true
		return existing, nil
	default:
		e.Log.Error("order commit failed", zap.String("user_id", userID), zap.String("order_id", o.ID), zap.Error(err))
		return nil, &PersistenceError{Err: err}
	}

	e.Log.Info("order placed", zap.String("user_id", userID), zap.String("order_id", o.ID),
		zap.String("total", o.Total.String()), zap.Int("lines", len(o.Lines)))
	return o, nil
}

// replayOnShortage covers a retry racing its own first attempt: the first
// attempt took the stock, so the retry runs short before it can reach the
// idempotency key's unique index. If an order under the key exists by now,
// the shortage is that order's doing and the call is a replay.
func (e *Engine) replayOnShortage(ctx context.Context, userID, key string, err error) (*Order, bool) {
	var stockErr *InsufficientStockError
	if key == "" || !errors.As(err, &stockErr) {
		return nil, false
	}
	o, ferr := e.Store.FindByIdempotencyKey(ctx, userID, key)
	if ferr != nil {
		return nil, false
	}
	o.Replayed = true
	e.Log.Info("order replayed after stock conflict", zap.String("user_id", userID), zap.String("order_id", o.ID))
	return o, true
}

// checkStock re-reads every product. It is an early, non-authoritative check;
// the conditional decrement in commit is what guards stock.
func (e *Engine) checkStock(ctx context.Context, demands []demand) (map[string]catalog.Product, error) {
	products := make(map[string]catalog.Product, len(demands))
	for _, d := range demands {
		p, err := e.Catalog.Get(ctx, d.productID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &InsufficientStockError{ProductID: d.productID, Available: 0, Requested: d.qty}
		}
		if err != nil {
			return nil, catalog.Unavailable(err)
		}
		if p.Stock < d.qty {
			return nil, &InsufficientStockError{ProductID: d.productID, Available: p.Stock, Requested: d.qty}
		}
		products[p.ID] = p
	}
	return products, nil
}

func (e *Engine) commit(ctx context.Context, tx Tx, o *Order, snap cart.Snapshot, demands []demand, traceID string) error {
	// demands are sorted by product id, so concurrent placements lock rows in
	// the same order
	for _, d := range demands {
		p, ok, err := tx.DecrementStock(ctx, d.productID, d.qty)
		if errors.Is(err, catalog.ErrNotFound) {
			return &InsufficientStockError{ProductID: d.productID, Available: 0, Requested: d.qty}
		}
		if err != nil {
			return err
		}
		if !ok {
			return &InsufficientStockError{ProductID: d.productID, Available: p.Stock, Requested: d.qty}
		}
		for i := range o.Lines {
			if o.Lines[i].ProductID == p.ID {
				o.Lines[i].ProductName = p.Name
				o.Lines[i].ProductImage = p.ImageURL
			}
		}
	}

	if err := tx.InsertOrder(ctx, o); err != nil {
		return err
	}
	if err := tx.InsertPurchases(ctx, purchasesOf(o)); err != nil {
		return err
	}
	if err := tx.RemoveCartLines(ctx, o.UserID, snap.LineIDs()); err != nil {
		return err
	}

	msg, err := placedMessage(o, e.Producer, traceID)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, msg)
}

func aggregate(lines []cart.Line) []demand {
	byID := map[string]int{}
	for _, l := range lines {
		byID[l.ProductID] += l.Quantity
	}
	out := make([]demand, 0, len(byID))
	for id, q := range byID {
		out = append(out, demand{productID: id, qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func buildOrder(userID string, snap cart.Snapshot, co Checkout, products map[string]catalog.Product) *Order {
	now := time.Now().UTC()
	o := &Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: co.IdempotencyKey,
		Status:         StatusPending,
		Shipping:       co.Shipping,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, l := range snap.Lines {
		p := products[l.ProductID]
		name, image := l.ProductName, l.ProductImage
		if p.ID != "" {
			name, image = p.Name, p.ImageURL
		}
		o.Lines = append(o.Lines, OrderLine{
			OrderID:      o.ID,
			Position:     i + 1,
			ProductID:    l.ProductID,
			ProductName:  name,
			ProductImage: image,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal(),
		})
	}
	o.Total = SumLines(o.Lines)
	return o
}

func purchasesOf(o *Order) []Purchase {
	out := make([]Purchase, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, Purchase{
			OrderID:   o.ID,
			UserID:    o.UserID,
			ProductID: l.ProductID,
			PaidPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Total:     l.Subtotal,
			Shipping:  o.Shipping,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}

func placedMessage(o *Order, producer, traceID string) (outbox.Message, error) {
	items := make([]ItemPrice, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, ItemPrice{ProductID: l.ProductID, Qty: l.Quantity, Price: l.UnitPrice})
	}
	return toMessage(EventOrderPlaced, TopicOrderPlaced, producer, traceID, o.ID, OrderPlacedPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    items,
		Total:    o.Total,
		Shipping: o.Shipping,
	})
}

func toMessage(eventType, topic, producer, traceID, orderID string, payload any) (outbox.Message, error) {
	env, err := newEnvelope(eventType, producer, traceID, orderID, payload)
	if err != nil {
		return outbox.Message{}, err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return outbox.Message{}, err
	}
	return outbox.Message{
		EventID:   env.EventID,
		Topic:     topic,
		Key:       string(PartitionKey(orderID)),
		EventType: eventType,
		Payload:   b,
	}, nil
}
