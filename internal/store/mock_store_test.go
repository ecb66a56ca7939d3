package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The SQLite tests define the contract; MockStore must match this behavior.

func TestMockStore_CreateCompany_Duplicate(t *testing.T) {
	store := NewMockStore()

	createTestCompany(t, store, "acme", true)

	err := store.CreateCompany(context.Background(), &Company{PublicKey: "acme"})
	assert.ErrorIs(t, err, ErrDuplicateCompany)
}

func TestMockStore_FindCompanyByKey_ReturnsSnapshot(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	company := createTestCompany(t, store, "acme", true)

	snapshot, err := store.FindCompanyByKey(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, store.SetAgentAvailability(ctx, company.Agents[0].ID, false))
	assert.True(t, snapshot.Agents[0].Available, "snapshot must not see later writes")

	fresh, err := store.FindCompanyByKey(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, fresh.Agents[0].Available)
}

func TestMockStore_FindCompanyByKey_NotFound(t *testing.T) {
	store := NewMockStore()

	_, err := store.FindCompanyByKey(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_CreateCustomer_KeyCollisionPrevention(t *testing.T) {
	// With ":" as delimiter, "a:b" + "c" and "a" + "b:c" would both produce "a:b:c".
	store := NewMockStore()
	ctx := context.Background()

	first, err := store.CreateCustomer(ctx, "a:b", "c")
	require.NoError(t, err)
	second, err := store.CreateCustomer(ctx, "a", "b:c")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, store.CustomerCount())
}

func TestMockStore_CreateCustomer_Idempotent(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateCustomer(ctx, "device-1", "company-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.CustomerCount())
	assert.Equal(t, 10, store.Calls("CreateCustomer"))
}

func TestMockStore_CreateConversation(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	company := createTestCompany(t, store, "acme", true)
	customer, err := store.CreateCustomer(ctx, "device-1", company.ID)
	require.NoError(t, err)

	conv := newTestConversation(company, company.Agents[0], customer)
	require.NoError(t, store.CreateConversation(ctx, conv))

	err = store.CreateConversation(ctx, newTestConversation(company, company.Agents[0], customer))
	assert.ErrorIs(t, err, ErrDuplicateConversation)

	loaded, err := store.LoadConversation(ctx, customer.ID, company.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, loaded.ID)
	require.NotNil(t, loaded.Agent)
	assert.Equal(t, "Agent 1", loaded.Agent.Name)
	require.Len(t, loaded.Messages, 1)

	assert.Equal(t, 1, store.ConversationCount())
	assert.Equal(t, 1, store.MessageCount())
}

func TestMockStore_CreateConversation_AgentUnavailable(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	company := createTestCompany(t, store, "acme", true)
	customer, err := store.CreateCustomer(ctx, "device-1", company.ID)
	require.NoError(t, err)

	store.BeforeCreateConversation = func(conv *Conversation) {
		require.NoError(t, store.SetAgentAvailability(ctx, conv.AgentID, false))
	}

	err = store.CreateConversation(ctx, newTestConversation(company, company.Agents[0], customer))
	assert.ErrorIs(t, err, ErrAgentUnavailable)
	assert.Zero(t, store.ConversationCount())
	assert.Zero(t, store.MessageCount())
}

func TestMockStore_FailOn(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.FailOn("Ping", boom)
	assert.ErrorIs(t, store.Ping(ctx), boom)

	store.FailOn("Ping", nil)
	assert.NoError(t, store.Ping(ctx))
	assert.Equal(t, 2, store.Calls("Ping"))
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	company := createTestCompany(t, store, "acme", true)
	customer, err := store.CreateCustomer(ctx, "device-1", company.ID)
	require.NoError(t, err)
	conv := newTestConversation(company, company.Agents[0], customer)
	require.NoError(t, store.CreateConversation(ctx, conv))

	loaded, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	loaded.Messages[0].Content = "mutated"
	loaded.Agent.Name = "mutated"

	again, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi, how may I help you?", again.Messages[0].Content)
	assert.Equal(t, "Agent 1", again.Agent.Name)
}

func TestMockStore_CreateConversation_DuplicateReportedBeforeAvailability(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	company := createTestCompany(t, store, "acme", true)
	customer, err := store.CreateCustomer(ctx, "device-1", company.ID)
	require.NoError(t, err)

	require.NoError(t, store.CreateConversation(ctx, newTestConversation(company, company.Agents[0], customer)))
	require.NoError(t, store.SetAgentAvailability(ctx, company.Agents[0].ID, false))

	err = store.CreateConversation(ctx, newTestConversation(company, company.Agents[0], customer))
	assert.ErrorIs(t, err, ErrDuplicateConversation)
	assert.Equal(t, 1, store.ConversationCount())
}
