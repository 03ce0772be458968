package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := scanProfile(r.DB.QueryRow(ctx, `SELECT id, email, full_name, updated_at FROM users WHERE id=$1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) Upsert(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, full_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
			updated_at = now()
		RETURNING id, email, full_name, updated_at`, p.UserID, p.Email, p.FullName))
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var at time.Time
	if err := row.Scan(&p.UserID, &p.Email, &p.FullName, &at); err != nil {
		return Profile{}, err
	}
	p.UpdatedAt = &at
	return p, nil
}
