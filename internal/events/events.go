// Package events publishes order and payment lifecycle events to RabbitMQ
// and consumes them to produce user notifications.
package events

import (
	"context"
	"time"
)

// Event kinds published on the orders exchange.
const (
	KindOrderCreated       = "order.created"
	KindOrderStatusChanged = "order.status_changed"
	KindPaymentCompleted   = "payment.completed"
	KindPaymentFailed      = "payment.failed"
)

// Event is a lifecycle event for an order or payment.
type Event struct {
	Kind    string         `json:"kind"`
	OrderID string         `json:"order_id"`
	UserID  string         `json:"user_id"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Publisher emits events to the message broker. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards all events. Used in tests and when the broker is
// not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
