// Package events publishes domain events for coven-connect.
//
// Events are JSON envelopes with a common Meta header and a typed Data
// payload, published to a topic exchange keyed by event type:
//
//	{"meta": {"id", "correlation_id", "producer", "time", "type"}, "data": {...}}
//
// The only event today is conversation.assigned.v1, emitted once a new
// conversation has been committed with its assigned agent.
//
// Publishing happens after the store transaction commits and is best-effort:
// callers log a failure and carry on. When events are disabled in config the
// gateway wires NopPublisher.
//
// AMQPPublisher talks to RabbitMQ through github.com/rabbitmq/amqp091-go. The
// mocks subpackage holds a gomock Publisher for tests in other packages.
package events
