// Package outbox relays events written inside business transactions to the
// event stream.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is what a transaction enqueues.
type Message struct {
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Record is a stored Message.
type Record struct {
	ID int64 `json:"id"`
	Message
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}

// Insert writes m on db, normally the caller's open transaction.
func Insert(ctx context.Context, db postgres.DBTX, m Message) error {
	_, err := db.Exec(ctx, `INSERT INTO outbox(event_id, topic, key, event_type, payload) VALUES ($1, $2, $3, $4, $5)`,
		m.EventID, m.Topic, m.Key, m.EventType, []byte(m.Payload))
	return err
}

// Repo is the Postgres Source.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) MarkSent(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id=$1`, id)
	return err
}

func (r *Repo) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, event_id::text, topic, key, event_type, payload, created_at, sent_at
	                              FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.EventType, &payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}
