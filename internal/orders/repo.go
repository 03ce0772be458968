package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, user_id, COALESCE(idempotency_key, ''), status, total,
	country, locker_type, locker_price, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// InTx runs fn in a READ COMMITTED transaction. That is enough here: stock is
// only changed by the conditional UPDATE, which re-checks the row under its
// lock, and order rows are guarded by constraints.
func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := getOrder(ctx, r.DB, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.DB, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) FindByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 AND idempotency_key=$2`, userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.DB, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	var ptrs []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.DB, ptrs); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *Repo) Purchases(ctx context.Context, userID string) ([]Purchase, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id::text, user_id, product_id, paid_price, quantity, total,
		       country, locker_type, locker_price, created_at
		FROM purchase_history WHERE user_id=$1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.OrderID, &p.UserID, &p.ProductID, &p.PaidPrice, &p.Quantity, &p.Total,
			&p.Shipping.Country, &p.Shipping.LockerType, &p.Shipping.LockerPrice, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) (catalog.Product, bool, error) {
	return catalog.DecrementIfAvailableTx(ctx, t.tx, productID, qty)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	var key any
	if o.IdempotencyKey != "" {
		key = o.IdempotencyKey
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, idempotency_key, status, total, country, locker_type, locker_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.UserID, key, string(o.Status), o.Total,
		o.Shipping.Country, o.Shipping.LockerType, o.Shipping.LockerPrice, o.CreatedAt, o.UpdatedAt)
	if postgres.IsUniqueViolation(err, "orders_user_idempotency_key") {
		return ErrDuplicateOrder
	}
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(`
			INSERT INTO order_items(order_id, position, product_id, product_name, product_image, unit_price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, l.Position, l.ProductID, l.ProductName, l.ProductImage, l.UnitPrice, l.Quantity, l.Subtotal)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) InsertPurchases(ctx context.Context, ps []Purchase) error {
	batch := &pgx.Batch{}
	for _, p := range ps {
		batch.Queue(`
			INSERT INTO purchase_history(order_id, user_id, product_id, paid_price, quantity, total, country, locker_type, locker_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.OrderID, p.UserID, p.ProductID, p.PaidPrice, p.Quantity, p.Total,
			p.Shipping.Country, p.Shipping.LockerType, p.Shipping.LockerPrice, p.CreatedAt)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) RemoveCartLines(ctx context.Context, userID string, lineIDs []string) error {
	return cart.RemoveLinesTx(ctx, t.tx, userID, lineIDs)
}

func (t *pgTx) Enqueue(ctx context.Context, m outbox.Message) error {
	return outbox.Insert(ctx, t.tx, m)
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	return getOrder(ctx, t.tx, orderID, true)
}

func (t *pgTx) UpdateStatus(ctx context.Context, orderID string, from, to Status, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE id::text=$1 AND status=$2`,
		orderID, string(from), string(to), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &TransitionError{OrderID: orderID, From: from, To: to}
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO order_status_events(order_id, from_status, to_status, created_at)
	                         VALUES ($1, $2, $3, $4)`, orderID, string(from), string(to), at)
	return err
}

func getOrder(ctx context.Context, db postgres.DBTX, orderID string, forUpdate bool) (*Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id::text=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(db.QueryRow(ctx, q, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func loadLines(ctx context.Context, db postgres.DBTX, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(list))
	ids := make([]string, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := db.Query(ctx, `
		SELECT order_id::text, position, product_id, product_name, product_image, unit_price, quantity, subtotal
		FROM order_items WHERE order_id::text = ANY($1::text[]) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.OrderID, &l.Position, &l.ProductID, &l.ProductName, &l.ProductImage,
			&l.UnitPrice, &l.Quantity, &l.Subtotal); err != nil {
			return err
		}
		if o := byID[l.OrderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &status, &o.Total,
		&o.Shipping.Country, &o.Shipping.LockerType, &o.Shipping.LockerPrice, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}
