// Package notify turns order events into user notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Cache is the subset of redisx.Cache the notifier needs. SetStatus must
// ignore a status that is not later than the cached one.
type Cache interface {
	MarkProcessed(ctx context.Context, service, id string) (bool, error)
	Forget(ctx context.Context, service, id string) error
	SetStatus(ctx context.Context, orderID, status string) error
}

// Notification is what the user is told.
type Notification struct {
	UserID  string
	OrderID string
	Status  orders.Status
	Message string
}

// Sender delivers a notification (push, mail...). LogSender only logs it.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Service struct {
	Cache       Cache
	Sender      Sender
	ServiceName string
	Log         *zap.Logger
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable message", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	if t := kafkax.Header(m.Headers, "x-event-type"); t != "" && t != env.EventType {
		s.Log.Warn("event type header mismatch", zap.String("header", t), zap.String("envelope", env.EventType))
	}

	n, ok, err := notificationFor(env)
	if err != nil {
		return err
	}
	if !ok {
		return nil // ignore
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := s.Cache.MarkProcessed(ctx, s.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.Cache.SetStatus(ctx, n.OrderID, string(n.Status)); err != nil {
		s.Log.Warn("status cache", zap.String("order_id", n.OrderID), zap.Error(err))
	}
	if err := s.Sender.Send(ctx, n); err != nil {
		_ = s.Cache.Forget(ctx, s.ServiceName, env.EventID)
		return err
	}
	return nil
}

func notificationFor(env orders.Envelope) (Notification, bool, error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			UserID:  p.UserID,
			OrderID: p.OrderID,
			Status:  orders.StatusPending,
			Message: fmt.Sprintf("Your order was created. Total %s", p.Total.StringFixed(2)),
		}, true, nil
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			UserID:  p.UserID,
			OrderID: p.OrderID,
			Status:  p.To,
			Message: fmt.Sprintf("Your order is now %s", p.To),
		}, true, nil
	}
	return Notification{}, false, nil
}

// LogSender writes notifications to the log.
type LogSender struct{ Log *zap.Logger }

func (l LogSender) Send(ctx context.Context, n Notification) error {
	l.Log.Info("notify user",
		zap.String("user_id", n.UserID),
		zap.String("order_id", n.OrderID),
		zap.String("status", string(n.Status)),
		zap.String("message", n.Message))
	return nil
}
