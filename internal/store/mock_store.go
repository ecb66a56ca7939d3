// ABOUTME: Mock Store implementation for testing
// ABOUTME: In-memory store with the same atomicity guarantees as SQLite plus fault injection hooks

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// Create-if-absent operations are atomic under mu, matching SQLiteStore.
type MockStore struct {
	mu            sync.RWMutex
	companies     map[string]*Company      // keyed by company ID
	companyByKey  map[string]string        // public key -> company ID
	agents        map[string]*Agent        // keyed by agent ID
	customers     map[string]*Customer     // keyed by pairKey(deviceID, companyID)
	conversations map[string]*Conversation // keyed by conversation ID
	active        map[string]string        // pairKey(customerID, companyID) -> conversation ID
	messages      map[string]*Message      // keyed by message ID

	errs  map[string]error
	calls map[string]int

	// BeforeCreateConversation, if set, runs before CreateConversation takes
	// the lock. Tests use it to change state between selection and commit.
	BeforeCreateConversation func(conv *Conversation)
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		companies:     make(map[string]*Company),
		companyByKey:  make(map[string]string),
		agents:        make(map[string]*Agent),
		customers:     make(map[string]*Customer),
		conversations: make(map[string]*Conversation),
		active:        make(map[string]string),
		messages:      make(map[string]*Message),
		errs:          make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailOn makes every subsequent call to the named method return err.
// Pass a nil err to clear.
func (m *MockStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns how many times the named method has been invoked.
func (m *MockStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// CustomerCount returns the number of stored customers.
func (m *MockStore) CustomerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.customers)
}

// ConversationCount returns the number of stored conversations.
func (m *MockStore) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// MessageCount returns the number of stored messages.
func (m *MockStore) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// pairKey joins two IDs with a null byte so "a:b"+"c" and "a"+"b:c" stay distinct.
func pairKey(a, b string) string {
	return a + "\x00" + b
}

// enter records a call and returns any injected error. Must be called with mu held.
func (m *MockStore) enter(method string) error {
	m.calls[method]++
	return m.errs[method]
}

// CreateCompany stores a company and its roster.
func (m *MockStore) CreateCompany(ctx context.Context, company *Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("CreateCompany"); err != nil {
		return err
	}
	if _, exists := m.companyByKey[company.PublicKey]; exists {
		return ErrDuplicateCompany
	}

	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}

	c := *company
	c.Agents = nil
	for i, agent := range company.Agents {
		if agent.ID == "" {
			agent.ID = uuid.New().String()
		}
		agent.CompanyID = company.ID
		agent.Position = i

		a := *agent
		m.agents[a.ID] = &a
		c.Agents = append(c.Agents, &a)
	}

	m.companies[c.ID] = &c
	m.companyByKey[c.PublicKey] = c.ID
	return nil
}

// FindCompanyByKey retrieves a company snapshot by public key.
func (m *MockStore) FindCompanyByKey(ctx context.Context, publicKey string) (*Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("FindCompanyByKey"); err != nil {
		return nil, err
	}

	id, ok := m.companyByKey[publicKey]
	if !ok || publicKey == "" {
		return nil, ErrNotFound
	}

	// Copy the roster so later availability changes don't leak into the snapshot
	c := *m.companies[id]
	c.Agents = make([]*Agent, 0, len(m.companies[id].Agents))
	for _, agent := range m.companies[id].Agents {
		a := *agent
		c.Agents = append(c.Agents, &a)
	}
	return &c, nil
}

// SetAgentAvailability flips an agent's online flag.
func (m *MockStore) SetAgentAvailability(ctx context.Context, agentID string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("SetAgentAvailability"); err != nil {
		return err
	}

	agent, ok := m.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	agent.Available = available
	return nil
}

// FindCustomer retrieves a customer by device ID within a company.
func (m *MockStore) FindCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("FindCustomer"); err != nil {
		return nil, err
	}

	c, ok := m.customers[pairKey(deviceID, companyID)]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// CreateCustomer inserts a customer unless one exists for the pair.
func (m *MockStore) CreateCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("CreateCustomer"); err != nil {
		return nil, err
	}

	key := pairKey(deviceID, companyID)
	c, ok := m.customers[key]
	if !ok {
		c = &Customer{
			ID:        uuid.New().String(),
			DeviceID:  deviceID,
			CompanyID: companyID,
			CreatedAt: time.Now().UTC(),
		}
		m.customers[key] = c
	}
	result := *c
	return &result, nil
}

// CreateConversation stores the conversation and its messages, or nothing.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if m.BeforeCreateConversation != nil {
		m.BeforeCreateConversation(conv)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("CreateConversation"); err != nil {
		return err
	}

	// Same order as SQLiteStore: an existing active conversation wins over
	// the agent's current availability
	key := pairKey(conv.CustomerID, conv.CompanyID)
	if !conv.Archived {
		if _, exists := m.active[key]; exists {
			return ErrDuplicateConversation
		}
	}

	agent, ok := m.agents[conv.AgentID]
	if !ok || agent.CompanyID != conv.CompanyID || !agent.Available {
		return ErrAgentUnavailable
	}

	c := *conv
	c.Agent = nil
	c.Messages = nil
	for _, msg := range conv.Messages {
		msg.ConversationID = conv.ID
		stored := *msg
		m.messages[stored.ID] = &stored
		c.Messages = append(c.Messages, &stored)
	}
	m.conversations[c.ID] = &c
	if !c.Archived {
		m.active[key] = c.ID
	}
	return nil
}

// FindActiveConversation retrieves the hydrated active conversation.
func (m *MockStore) FindActiveConversation(ctx context.Context, customerID, companyID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("FindActiveConversation"); err != nil {
		return nil, err
	}
	return m.activeLocked(customerID, companyID)
}

// LoadConversation re-reads the hydrated active conversation.
func (m *MockStore) LoadConversation(ctx context.Context, customerID, companyID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("LoadConversation"); err != nil {
		return nil, err
	}
	return m.activeLocked(customerID, companyID)
}

// GetConversation retrieves a hydrated conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter("GetConversation"); err != nil {
		return nil, err
	}
	return m.hydrateLocked(id)
}

func (m *MockStore) activeLocked(customerID, companyID string) (*Conversation, error) {
	id, ok := m.active[pairKey(customerID, companyID)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.hydrateLocked(id)
}

// hydrateLocked returns a deep copy with agent and messages. Must be called with mu held.
func (m *MockStore) hydrateLocked(id string) (*Conversation, error) {
	stored, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}

	c := *stored
	if agent, ok := m.agents[c.AgentID]; ok {
		a := *agent
		c.Agent = &a
	}
	c.Messages = make([]*Message, 0, len(stored.Messages))
	for _, msg := range stored.Messages {
		mc := *msg
		c.Messages = append(c.Messages, &mc)
	}
	return &c, nil
}

// Ping always succeeds unless an error is injected.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter("Ping")
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
