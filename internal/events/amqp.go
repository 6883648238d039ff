package events

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the durable topic exchange all order events go through.
	Exchange = "soko.orders"
	// NotificationQueue receives every event for the notification consumer.
	NotificationQueue = "soko.notifications"
	// DeadLetterQueue receives messages the consumer rejected.
	DeadLetterQueue = "soko.notifications.dlq"
)

// AMQPPublisher publishes events to a RabbitMQ topic exchange. The event
// kind doubles as the routing key.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange, the
// notification queue and its dead-letter pair.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declare exchange")
	}

	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declare dead letter queue")
	}

	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterQueue,
	}); err != nil {
		return errors.Wrap(err, "declare notification queue")
	}

	// One binding per event family keeps the consumer's scope explicit.
	for _, key := range []string{"order.*", "payment.*"} {
		if err := ch.QueueBind(NotificationQueue, key, Exchange, false, nil); err != nil {
			return errors.Wrapf(err, "bind %s", key)
		}
	}
	return nil
}

// Publish sends the event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = p.ch.PublishWithContext(ctx, Exchange, ev.Kind, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

// Channel exposes the underlying channel for consumers sharing the
// connection.
func (p *AMQPPublisher) Channel() *amqp.Channel { return p.ch }

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
