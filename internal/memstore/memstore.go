// Package memstore is an in-memory implementation of the catalog, cart,
// order, outbox and profile stores. Transactions work on a copy of the whole
// state that replaces the original only when the transaction function
// succeeds.
package memstore

import (
	"context"
	"errors"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
	"github.com/ariefcatur/go-storefront.git/internal/profile"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnreachable is returned by every operation while the store is down.
var ErrUnreachable = errors.New("memstore: unreachable")

// StatusEvent records one applied status transition.
type StatusEvent struct {
	OrderID  string
	From, To orders.Status
	At       time.Time
}

type state struct {
	products  map[string]catalog.Product
	lines     map[string]cart.Line
	lineSeq   int64
	orders    map[string]orders.Order
	orderSeq  []string
	purchases []orders.Purchase
	events    []StatusEvent
	outbox    []outbox.Record
	outboxSeq int64
}

func (s *state) clone() *state {
	c := &state{
		products:  make(map[string]catalog.Product, len(s.products)),
		lines:     make(map[string]cart.Line, len(s.lines)),
		lineSeq:   s.lineSeq,
		orders:    make(map[string]orders.Order, len(s.orders)),
		orderSeq:  append([]string(nil), s.orderSeq...),
		purchases: append([]orders.Purchase(nil), s.purchases...),
		events:    append([]StatusEvent(nil), s.events...),
		outbox:    append([]outbox.Record(nil), s.outbox...),
		outboxSeq: s.outboxSeq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	st       *state
	profiles map[string]profile.Profile
	down     bool
	faults   map[string]error
}

var (
	_ catalog.Store = (*Store)(nil)
	_ cart.Store    = (*Store)(nil)
	_ orders.Store  = OrderStore{}
	_ outbox.Source = (*Store)(nil)
	_ profile.Store = ProfileStore{}
)

func New() *Store {
	return &Store{
		st: &state{
			products: map[string]catalog.Product{},
			lines:    map[string]cart.Line{},
			orders:   map[string]orders.Order{},
		},
		profiles: map[string]profile.Profile{},
		faults:   map[string]error{},
	}
}

// SetDown makes every operation fail with ErrUnreachable.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// FailOn makes the named transaction step return err until cleared with a
// nil err. Steps: decrement, insert_order, insert_purchases,
// remove_cart_lines, enqueue, update_status.
func (s *Store) FailOn(step string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, step)
		return
	}
	s.faults[step] = err
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.st.products[p.ID] = p
}

// AllOrders returns every stored order in insertion order.
func (s *Store) AllOrders() []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0, len(s.st.orderSeq))
	for _, id := range s.st.orderSeq {
		out = append(out, copyOrder(s.st.orders[id]))
	}
	return out
}

func (s *Store) StatusEvents() []StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatusEvent(nil), s.st.events...)
}

// OutboxRecords returns every outbox record, sent or not.
func (s *Store) OutboxRecords() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.st.outbox...)
}

func (s *Store) lock() error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return ErrUnreachable
	}
	return nil
}

// catalog.Store

func (s *Store) Get(ctx context.Context, productID string) (catalog.Product, error) {
	if err := s.lock(); err != nil {
		return catalog.Product{}, catalog.Unavailable(err)
	}
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (s *Store) List(ctx context.Context, f catalog.Filter) iter.Seq2[catalog.Product, error] {
	return func(yield func(catalog.Product, error) bool) {
		if err := s.lock(); err != nil {
			yield(catalog.Product{}, catalog.Unavailable(err))
			return
		}
		var ps []catalog.Product
		for _, p := range s.st.products {
			if f.Match(p) {
				ps = append(ps, p)
			}
		}
		s.mu.Unlock()

		sort.Slice(ps, func(i, j int) bool {
			if ps[i].Name != ps[j].Name {
				return ps[i].Name < ps[j].Name
			}
			return ps[i].ID < ps[j].ID
		})
		for _, p := range ps {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (s *Store) DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	if err := s.lock(); err != nil {
		return false, catalog.Unavailable(err)
	}
	defer s.mu.Unlock()
	_, ok, err := decrement(s.st, productID, qty)
	return ok, err
}

func decrement(st *state, productID string, qty int) (catalog.Product, bool, error) {
	if qty < 1 {
		return catalog.Product{}, false, catalog.ErrInvalidQuantity
	}
	p, ok := st.products[productID]
	if !ok {
		return catalog.Product{}, false, catalog.ErrNotFound
	}
	if p.Stock < qty {
		return p, false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	st.products[productID] = p
	return p, true, nil
}

// cart.Store

func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []cart.Line
	for _, l := range s.st.lines {
		if l.UserID == userID {
			out = append(out, s.withProduct(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *Store) Line(ctx context.Context, userID, lineID string) (cart.Line, error) {
	if err := s.lock(); err != nil {
		return cart.Line{}, err
	}
	defer s.mu.Unlock()
	l, ok := s.st.lines[lineID]
	if !ok || l.UserID != userID {
		return cart.Line{}, cart.ErrLineNotFound
	}
	return s.withProduct(l), nil
}

func (s *Store) AddOrIncrement(ctx context.Context, userID, productID string, qty int, unitPrice decimal.Decimal) (cart.Line, error) {
	if err := s.lock(); err != nil {
		return cart.Line{}, err
	}
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return cart.Line{}, catalog.ErrNotFound
	}
	for id, l := range s.st.lines {
		if l.UserID == userID && l.ProductID == productID {
			if l.Quantity+qty > p.Stock {
				return cart.Line{}, &cart.StockLimitError{ProductID: productID, Stock: p.Stock, Requested: l.Quantity + qty}
			}
			l.Quantity += qty
			s.st.lines[id] = l
			return s.withProduct(l), nil
		}
	}
	if qty > p.Stock {
		return cart.Line{}, &cart.StockLimitError{ProductID: productID, Stock: p.Stock, Requested: qty}
	}
	s.st.lineSeq++
	l := cart.Line{
		ID:        uuid.NewString(),
		Seq:       s.st.lineSeq,
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		AddedAt:   time.Now().UTC(),
	}
	s.st.lines[l.ID] = l
	return s.withProduct(l), nil
}

func (s *Store) SetQuantity(ctx context.Context, userID, lineID string, qty int) (cart.Line, error) {
	if err := s.lock(); err != nil {
		return cart.Line{}, err
	}
	defer s.mu.Unlock()
	l, ok := s.st.lines[lineID]
	if !ok || l.UserID != userID {
		return cart.Line{}, cart.ErrLineNotFound
	}
	if p := s.st.products[l.ProductID]; qty > p.Stock {
		return cart.Line{}, &cart.StockLimitError{ProductID: l.ProductID, Stock: p.Stock, Requested: qty}
	}
	l.Quantity = qty
	s.st.lines[lineID] = l
	return s.withProduct(l), nil
}

func (s *Store) Remove(ctx context.Context, userID, lineID string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	l, ok := s.st.lines[lineID]
	if !ok || l.UserID != userID {
		return cart.ErrLineNotFound
	}
	delete(s.st.lines, lineID)
	return nil
}

func (s *Store) withProduct(l cart.Line) cart.Line {
	if p, ok := s.st.products[l.ProductID]; ok {
		l.ProductName, l.ProductImage, l.Stock = p.Name, p.ImageURL, p.Stock
	}
	return l
}

// OrderStore is the orders.Store view of a Store.
type OrderStore struct{ s *Store }

func (s *Store) OrderStore() OrderStore { return OrderStore{s: s} }

func (v OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return v.s.inTx(ctx, fn)
}

func (v OrderStore) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	return v.s.getOrder(ctx, orderID)
}

func (v OrderStore) FindByIdempotencyKey(ctx context.Context, userID, key string) (*orders.Order, error) {
	return v.s.findByIdempotencyKey(ctx, userID, key)
}

func (v OrderStore) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return v.s.listByUser(ctx, userID)
}

func (v OrderStore) Purchases(ctx context.Context, userID string) ([]orders.Purchase, error) {
	return v.s.purchases(ctx, userID)
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(ctx, &memTx{st: work, faults: s.faults}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) getOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (s *Store) findByIdempotencyKey(ctx context.Context, userID, key string) (*orders.Order, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	for _, id := range s.st.orderSeq {
		o := s.st.orders[id]
		if o.UserID == userID && o.IdempotencyKey == key {
			c := copyOrder(o)
			return &c, nil
		}
	}
	return nil, orders.ErrNotFound
}

func (s *Store) listByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []orders.Order
	for i := len(s.st.orderSeq) - 1; i >= 0; i-- {
		o := s.st.orders[s.st.orderSeq[i]]
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) purchases(ctx context.Context, userID string) ([]orders.Purchase, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []orders.Purchase
	for i := len(s.st.purchases) - 1; i >= 0; i-- {
		if p := s.st.purchases[i]; p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// outbox.Source

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []outbox.Record
	for _, r := range s.st.outbox {
		if r.SentAt == nil {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for i := range s.st.outbox {
		if s.st.outbox[i].ID == id {
			now := time.Now().UTC()
			s.st.outbox[i].SentAt = &now
			return nil
		}
	}
	return nil
}

func copyOrder(o orders.Order) orders.Order {
	o.Lines = append([]orders.OrderLine(nil), o.Lines...)
	return o
}
