// ABOUTME: Session resolver and conversation provisioner
// ABOUTME: Resolves company, customer and active conversation, provisioning a new one when needed

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-connect/internal/events"
	"github.com/2389/coven-connect/internal/store"
)

// DefaultWelcomeMessage opens every new conversation
const DefaultWelcomeMessage = "Hi, how may I help you?"

// Store defines what the service needs from storage
type Store interface {
	store.DirectoryStore
	store.ConversationStore
}

// Config holds optional service settings
type Config struct {
	// WelcomeMessage is the agent's opening line. Empty uses DefaultWelcomeMessage.
	WelcomeMessage string

	// Publisher receives conversation.assigned.v1 after a conversation is
	// committed. Nil disables events.
	Publisher events.Publisher

	// Now is the clock for message and conversation timestamps. Nil uses time.Now.
	Now func() time.Time
}

// Service resolves sessions. It is safe for concurrent use and holds no
// locks; atomicity lives in the store.
type Service struct {
	store     Store
	welcome   string
	publisher events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new session Service
func New(s Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     s,
		welcome:   cfg.WelcomeMessage,
		publisher: cfg.Publisher,
		now:       cfg.Now,
		logger:    logger.With("component", "session"),
	}
}

// ResolveSession returns the active conversation for deviceID at the company
// identified by companyKey, creating the customer and conversation if needed.
//
// An existing active conversation is returned as stored: no reassignment and
// no second welcome message. Each call creates at most one customer, one
// conversation and one message.
func (s *Service) ResolveSession(ctx context.Context, companyKey, deviceID string) (*store.Conversation, error) {
	company, err := s.store.FindCompanyByKey(ctx, companyKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindInvalidCompanyKey, "find company", err)
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "find company", err)
	}

	customer, err := s.ensureCustomer(ctx, deviceID, company.ID)
	if err != nil {
		return nil, err
	}

	conv, err := s.store.FindActiveConversation(ctx, customer.ID, company.ID)
	if err == nil {
		s.logger.Debug("resumed active conversation",
			"conversation_id", conv.ID,
			"customer_id", customer.ID)
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindStoreUnavailable, "find conversation", err)
	}

	agent, err := SelectAgent(company)
	if err != nil {
		s.logger.Info("no agents available", "company_id", company.ID)
		return nil, err
	}

	s.logger.Debug("selected agent", "agent_id", agent.ID, "company_id", company.ID)
	return s.ProvisionConversation(ctx, company, agent, customer.ID)
}

// ensureCustomer finds the customer or creates it. CreateCustomer is an
// insert-or-get, so a concurrent first contact for the same device returns
// the same row.
func (s *Service) ensureCustomer(ctx context.Context, deviceID, companyID string) (*store.Customer, error) {
	customer, err := s.store.FindCustomer(ctx, deviceID, companyID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindStoreUnavailable, "find customer", err)
	}

	customer, err = s.store.CreateCustomer(ctx, deviceID, companyID)
	if err != nil {
		return nil, newError(KindStoreUnavailable, "create customer", err)
	}

	s.logger.Info("created customer", "customer_id", customer.ID, "company_id", companyID)
	return customer, nil
}

// ProvisionConversation opens a conversation between agent and the customer
// with the welcome message, writing both in one store transaction, then
// re-reads it fully hydrated.
//
// If another call already committed an active conversation for the customer,
// that conversation is returned instead. If the agent went offline after
// selection, the commit fails with KindNoAgentsAvailable and nothing is written.
func (s *Service) ProvisionConversation(ctx context.Context, company *store.Company, agent *store.Agent, customerID string) (*store.Conversation, error) {
	now := s.now().Unix()
	conv := &store.Conversation{
		ID:         uuid.New().String(),
		CompanyID:  company.ID,
		AgentID:    agent.ID,
		CustomerID: customerID,
		Timestamp:  now,
		Messages: []*store.Message{
			{
				ID:        uuid.New().String(),
				Author:    store.AuthorAgent,
				Timestamp: now,
				Content:   s.welcome,
			},
		},
	}

	err := s.store.CreateConversation(ctx, conv)
	switch {
	case err == nil:
		s.logger.Info("provisioned conversation",
			"conversation_id", conv.ID,
			"agent_id", agent.ID,
			"customer_id", customerID)

	case errors.Is(err, store.ErrDuplicateConversation):
		// Another call won; return its conversation
		s.logger.Warn("lost conversation race, using existing",
			"customer_id", customerID,
			"company_id", company.ID)
		return s.load(ctx, customerID, company.ID)

	case errors.Is(err, store.ErrAgentUnavailable):
		s.logger.Warn("agent went offline before commit",
			"agent_id", agent.ID,
			"company_id", company.ID)
		return nil, newError(KindNoAgentsAvailable, "create conversation", err)

	default:
		return nil, newError(KindProvisioningIncomplete, "create conversation", err)
	}

	loaded, err := s.load(ctx, customerID, company.ID)
	if err != nil {
		return nil, err
	}

	s.publishAssigned(ctx, loaded)
	return loaded, nil
}

// load re-reads the hydrated active conversation after a write
func (s *Service) load(ctx context.Context, customerID, companyID string) (*store.Conversation, error) {
	conv, err := s.store.LoadConversation(ctx, customerID, companyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindProvisioningIncomplete, "load conversation", err)
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "load conversation", err)
	}
	if conv.Agent == nil || conv.Agent.Name == "" || len(conv.Messages) == 0 {
		return nil, newError(KindProvisioningIncomplete, "load conversation",
			errors.New("conversation is not fully hydrated"))
	}
	return conv, nil
}

// publishAssigned emits conversation.assigned.v1. The conversation is already
// committed, so a failure is only logged.
func (s *Service) publishAssigned(ctx context.Context, conv *store.Conversation) {
	env, err := events.NewEnvelope(events.TypeConversationAssigned, conv.ID, events.ConversationAssignedV1{
		CompanyID:      conv.CompanyID,
		CustomerID:     conv.CustomerID,
		ConversationID: conv.ID,
		AgentID:        conv.AgentID,
		AssignedAt:     conv.Timestamp,
	})
	if err != nil {
		s.logger.Error("building assignment event", "error", err, "conversation_id", conv.ID)
		return
	}

	if err := s.publisher.Publish(ctx, events.TypeConversationAssigned, env); err != nil {
		s.logger.Warn("publishing assignment event failed", "error", err, "conversation_id", conv.ID)
	}
}
