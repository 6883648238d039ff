package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Notification is a per-user record derived from a lifecycle event.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// NotificationStore persists notifications produced by the consumer.
type NotificationStore interface {
	Create(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Consumer turns order and payment events into notification rows.
type Consumer struct {
	ch    *amqp.Channel
	store NotificationStore
	lg    *zap.Logger
}

// NewConsumer creates a Consumer on an existing channel.
func NewConsumer(ch *amqp.Channel, store NotificationStore, lg *zap.Logger) *Consumer {
	return &Consumer{ch: ch, store: store, lg: lg}
}

// Run consumes the notification queue until ctx is cancelled. Messages
// that cannot be decoded or stored are rejected without requeue so they
// land on the dead-letter queue instead of looping forever.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(NotificationQueue, "notification-consumer", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "start consuming")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.lg.Warn("Dropping undecodable event", zap.Error(err), zap.String("routing_key", d.RoutingKey))
		_ = d.Nack(false, false)
		return
	}

	n := Notification{
		ID:        uuid.New().String(),
		UserID:    ev.UserID,
		Kind:      ev.Kind,
		Payload:   ev.Payload,
		CreatedAt: ev.At,
	}
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}
	n.Payload["order_id"] = ev.OrderID

	if err := c.store.Create(ctx, n); err != nil {
		c.lg.Error("Storing notification failed", zap.Error(err), zap.String("order_id", ev.OrderID))
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}
