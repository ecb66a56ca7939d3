// ABOUTME: Event envelope and payload types for domain events
// ABOUTME: conversation.assigned.v1 carries the IDs of a newly provisioned conversation

package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// TypeConversationAssigned is the event type and routing key for a newly
	// provisioned conversation.
	TypeConversationAssigned = "conversation.assigned.v1"

	// DefaultExchange is the topic exchange events are published to.
	DefaultExchange = "connect.events"

	// Producer identifies this service in event metadata.
	Producer = "coven-connect"
)

// Meta is the header shared by every event
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps an event payload with its metadata
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// ConversationAssignedV1 is the payload of conversation.assigned.v1
type ConversationAssignedV1 struct {
	CompanyID      string `json:"company_id"`
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	AssignedAt     int64  `json:"assigned_at"` // epoch seconds
}

// NewEnvelope marshals data into an envelope of the given type.
// An empty correlationID falls back to the event ID.
func NewEnvelope(eventType, correlationID string, data any) (Envelope, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}

	id := uuid.NewString()
	if correlationID == "" {
		correlationID = id
	}
	producer := Producer

	return Envelope{
		Meta: Meta{
			ID:            id,
			CorrelationID: &correlationID,
			Producer:      &producer,
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: body,
	}, nil
}
