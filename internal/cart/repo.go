package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const lineSelect = `
	SELECT c.id::text, c.seq, c.user_id, c.product_id, p.name, p.image_url, p.stock,
	       c.quantity, c.unit_price, c.added_at
	FROM cart_items c JOIN products p ON p.id = c.product_id`

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Lines(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, lineSelect+` WHERE c.user_id=$1 ORDER BY c.seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) Line(ctx context.Context, userID, lineID string) (Line, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return Line{}, ErrLineNotFound
	}
	l, err := scanLine(r.DB.QueryRow(ctx, lineSelect+` WHERE c.user_id=$1 AND c.id::text=$2`, userID, lineID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	return l, err
}

func (r *Repo) AddOrIncrement(ctx context.Context, userID, productID string, qty int, unitPrice decimal.Decimal) (Line, error) {
	// the insert only selects a row when the stock covers qty, and the update
	// only fires when the summed quantity still fits; both re-read stock in
	// the same statement
	var id string
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, quantity, unit_price)
		SELECT $1, $2, p.id, $4, $5 FROM products p WHERE p.id = $3 AND p.stock >= $4
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= (SELECT stock FROM products WHERE id = EXCLUDED.product_id)
		RETURNING id::text`,
		uuid.NewString(), userID, productID, qty, unitPrice,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, r.stockLimit(ctx, userID, productID, qty)
	}
	if err != nil {
		return Line{}, err
	}
	return r.Line(ctx, userID, id)
}

// stockLimit explains a rejected add.
func (r *Repo) stockLimit(ctx context.Context, userID, productID string, qty int) error {
	var stock, have int
	err := r.DB.QueryRow(ctx, `
		SELECT p.stock, COALESCE((SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = p.id), 0)
		FROM products p WHERE p.id = $2`, userID, productID).Scan(&stock, &have)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &StockLimitError{ProductID: productID, Stock: stock, Requested: have + qty}
}

func (r *Repo) SetQuantity(ctx context.Context, userID, lineID string, qty int) (Line, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return Line{}, ErrLineNotFound
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_items c SET quantity = $3
		FROM products p
		WHERE c.user_id = $1 AND c.id::text = $2 AND p.id = c.product_id AND p.stock >= $3`,
		userID, lineID, qty)
	if err != nil {
		return Line{}, err
	}
	if ct.RowsAffected() == 0 {
		l, err := r.Line(ctx, userID, lineID)
		if err != nil {
			return Line{}, err
		}
		return Line{}, &StockLimitError{ProductID: l.ProductID, Stock: l.Stock, Requested: qty}
	}
	return r.Line(ctx, userID, lineID)
}

func (r *Repo) Remove(ctx context.Context, userID, lineID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND id::text=$2`, userID, lineID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// RemoveLinesTx deletes exactly the given lines, leaving anything added after
// the snapshot was taken.
func RemoveLinesTx(ctx context.Context, db postgres.DBTX, userID string, lineIDs []string) error {
	_, err := db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND id::text = ANY($2::text[])`, userID, lineIDs)
	return err
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.Seq, &l.UserID, &l.ProductID, &l.ProductName, &l.ProductImage, &l.Stock,
		&l.Quantity, &l.UnitPrice, &l.AddedAt)
	return l, err
}
