package catalog

import (
	"context"
	"errors"
	"iter"

	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id, name, type, price, stock, image_url, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, productID string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, Unavailable(err)
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context, f Filter) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		                              WHERE ($1 = '' OR type = $1) ORDER BY name, id`, f.Type)
		if err != nil {
			yield(Product{}, Unavailable(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				yield(Product{}, Unavailable(err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Product{}, Unavailable(err))
		}
	}
}

func (r *Repo) DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	_, ok, err := DecrementIfAvailableTx(ctx, r.DB, productID, qty)
	return ok, err
}

// DecrementIfAvailableTx runs the conditional decrement on db, which may be a
// transaction. It returns the product as it stands after the statement: when
// ok is false, p.Stock is the stock that was available (zero value and
// ErrNotFound if the product does not exist).
func DecrementIfAvailableTx(ctx context.Context, db postgres.DBTX, productID string, qty int) (p Product, ok bool, err error) {
	if qty < 1 {
		return Product{}, false, ErrInvalidQuantity
	}
	row := db.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING `+productColumns, productID, qty)
	p, err = scanProduct(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, err
	}

	// short or missing: read what is there for the caller's error detail
	p, err = scanProduct(db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, ErrNotFound
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, false, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
