// ABOUTME: Store interfaces and data types for coven-connect persistence
// ABOUTME: Defines Company, Agent, Customer, Conversation, Message and the store contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when the customer already has an active
// conversation with the company
var ErrDuplicateConversation = errors.New("active conversation already exists")

// ErrDuplicateCompany is returned when a company with the same public key exists
var ErrDuplicateCompany = errors.New("company already exists")

// ErrAgentUnavailable is returned when a conversation is committed against an
// agent that is no longer marked available
var ErrAgentUnavailable = errors.New("agent unavailable")

// AuthorRole identifies who wrote a message
type AuthorRole string

const (
	AuthorAgent    AuthorRole = "agent"
	AuthorCustomer AuthorRole = "customer"
)

// Valid reports whether r is a known author role.
func (r AuthorRole) Valid() bool {
	return r == AuthorAgent || r == AuthorCustomer
}

// Agent is a human operator on a company's roster
type Agent struct {
	ID        string
	CompanyID string
	Name      string
	Available bool
	Position  int // roster order, 0-based
}

// Company is a tenant owning agents, customers and conversations
type Company struct {
	ID        string
	PublicKey string
	Name      string
	Agents    []*Agent // roster order
	CreatedAt time.Time
}

// Customer is an end user identified by device ID, scoped to one company
type Customer struct {
	ID        string
	DeviceID  string
	CompanyID string
	CreatedAt time.Time
}

// Message is an immutable chat utterance
type Message struct {
	ID             string
	ConversationID string
	Author         AuthorRole
	Timestamp      int64 // epoch seconds
	Content        string
}

// Conversation is a session between one customer and one assigned agent.
// Agent and Messages are populated by hydrated reads.
type Conversation struct {
	ID         string
	CompanyID  string
	AgentID    string
	CustomerID string
	Agent      *Agent
	Messages   []*Message
	Timestamp  int64 // epoch seconds
	Archived   bool
}

// DirectoryStore resolves companies and customers
type DirectoryStore interface {
	// FindCompanyByKey returns ErrNotFound when no company has the key.
	FindCompanyByKey(ctx context.Context, publicKey string) (*Company, error)
	// FindCustomer returns ErrNotFound when the device is unknown to the company.
	FindCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error)
	// CreateCustomer is idempotent: concurrent calls for the same
	// (deviceID, companyID) all return the same record.
	CreateCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error)
}

// ConversationStore resolves and persists conversations together with their messages
type ConversationStore interface {
	// FindActiveConversation returns the hydrated active conversation or ErrNotFound.
	FindActiveConversation(ctx context.Context, customerID, companyID string) (*Conversation, error)
	// CreateConversation writes the conversation and its messages as one unit.
	// Returns ErrDuplicateConversation if an active conversation already exists
	// for the pair, checked before availability so a lost race always reports
	// the duplicate. Returns ErrAgentUnavailable if the agent went offline.
	// In both cases nothing is written.
	CreateConversation(ctx context.Context, conv *Conversation) error
	// LoadConversation re-reads the active conversation with agent and messages
	// attached. It does not judge completeness; callers do.
	LoadConversation(ctx context.Context, customerID, companyID string) (*Conversation, error)
}

// AdminStore covers the writes made by operators and the presence system
type AdminStore interface {
	CreateCompany(ctx context.Context, company *Company) error
	SetAgentAvailability(ctx context.Context, agentID string, available bool) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
}

// Store is everything the gateway needs from persistence
type Store interface {
	DirectoryStore
	ConversationStore
	AdminStore

	// Ping checks that the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
