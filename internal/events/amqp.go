// ABOUTME: RabbitMQ publisher for domain events using amqp091-go
// ABOUTME: Declares a durable topic exchange and publishes persistent JSON messages

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes envelopes to a RabbitMQ topic exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
}

// NewAMQPPublisher dials url and declares exchange as a durable topic exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %q: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger.With("component", "events"),
	}, nil
}

// Publish sends env as a persistent JSON message. A channel is opened per
// publish since amqp channels are not safe for concurrent use.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	correlationID := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		correlationID = *env.Meta.CorrelationID
	}
	appID := ""
	if env.Meta.Producer != nil {
		appID = *env.Meta.Producer
	}

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: correlationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         appID,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", env.Meta.Type, err)
	}

	p.logger.Debug("published event", "exchange", p.exchange, "key", routingKey, "id", env.Meta.ID)
	return nil
}

// Close closes the underlying connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

var _ Publisher = (*AMQPPublisher)(nil)
