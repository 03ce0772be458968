package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultBatch = 100

type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, eventType string) error
}

// Relay publishes pending records in id order. Delivery is at-least-once: a
// crash between Publish and MarkSent resends the record, so consumers dedup
// on event_id.
type Relay struct {
	Source    Source
	Publisher Publisher
	Interval  time.Duration
	Batch     int
	Log       *zap.Logger
}

// RunOnce publishes one batch and returns how many records were sent. It
// stops at the first failed publish so ordering per key is kept.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	recs, err := r.Source.FetchPending(ctx, r.batch())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range recs {
		if err := r.Publisher.Publish(ctx, rec.Topic, []byte(rec.Key), rec.Payload, rec.EventType); err != nil {
			return sent, err
		}
		if err := r.Source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := r.drain(ctx); err != nil && ctx.Err() == nil {
			log.Warn("outbox relay", zap.Error(err))
		}
	}
}

// drain runs batches while full ones keep coming.
func (r *Relay) drain(ctx context.Context) error {
	batch := r.batch()
	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			return err
		}
		if n < batch {
			return nil
		}
	}
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return defaultBatch
	}
	return r.Batch
}
