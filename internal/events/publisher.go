//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

// ABOUTME: Publisher interface for domain events and a no-op implementation
// ABOUTME: NopPublisher is used when events are disabled in config

package events

import "context"

// Publisher sends an envelope under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env Envelope) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(ctx context.Context, routingKey string, env Envelope) error {
	return nil
}

// Close does nothing
func (NopPublisher) Close() error {
	return nil
}

var _ Publisher = NopPublisher{}
