// ABOUTME: Conversation and message persistence for the SQLite store
// ABOUTME: Conversations are written with their messages in one transaction guarded by the active-conversation index

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const conversationColumns = `
	c.id, c.company_id, c.agent_id, c.customer_id, c.timestamp, c.archived,
	a.id, a.company_id, a.name, a.available, a.position
`

// CreateConversation writes the conversation and its messages atomically.
//
// Inside one immediate transaction it:
//  1. returns ErrDuplicateConversation if the customer already has an active
//     conversation with the company, whatever its agent's state
//  2. re-checks that the agent is still on the company's roster and available
//  3. inserts the conversation (the partial unique index backs up step 1)
//  4. inserts the messages in slice order
//
// On any failure the transaction is rolled back, so a message is never left
// without its conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning conversation transaction: %w", err)
	}
	defer tx.Rollback()

	if !conv.Archived {
		var existing string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM conversations
			WHERE customer_id = ? AND company_id = ? AND archived = 0
		`, conv.CustomerID, conv.CompanyID).Scan(&existing)
		if err == nil {
			return ErrDuplicateConversation
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking active conversation: %w", err)
		}
	}

	var available int
	err = tx.QueryRowContext(ctx, `
		SELECT available FROM agents WHERE id = ? AND company_id = ?
	`, conv.AgentID, conv.CompanyID).Scan(&available)
	if err == sql.ErrNoRows || (err == nil && available == 0) {
		return ErrAgentUnavailable
	}
	if err != nil {
		return fmt.Errorf("checking agent availability: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, company_id, agent_id, customer_id, timestamp, archived)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.CompanyID, conv.AgentID, conv.CustomerID, conv.Timestamp, boolToInt(conv.Archived))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for i, msg := range conv.Messages {
		msg.ConversationID = conv.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, position, author, timestamp, content)
			VALUES (?, ?, ?, ?, ?, ?)
		`, msg.ID, msg.ConversationID, i, string(msg.Author), msg.Timestamp, msg.Content)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("created conversation",
		"id", conv.ID,
		"customer_id", conv.CustomerID,
		"agent_id", conv.AgentID,
		"messages", len(conv.Messages))
	return nil
}

// FindActiveConversation retrieves the customer's active conversation with the
// company, hydrated with its agent and messages.
// Returns ErrNotFound if there is none.
func (s *SQLiteStore) FindActiveConversation(ctx context.Context, customerID, companyID string) (*Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE c.customer_id = ? AND c.company_id = ? AND c.archived = 0
	`, customerID, companyID)
}

// LoadConversation is the hydrated read used after a write. It resolves the
// same row as FindActiveConversation with its agent and messages attached.
// Judging whether the row is complete is left to the caller.
func (s *SQLiteStore) LoadConversation(ctx context.Context, customerID, companyID string) (*Conversation, error) {
	return s.FindActiveConversation(ctx, customerID, companyID)
}

// GetConversation retrieves a conversation by ID, archived or not.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE c.id = ?
	`, id)
}

// queryConversation runs a single-row conversation query and loads its messages
func (s *SQLiteStore) queryConversation(ctx context.Context, query string, args ...any) (*Conversation, error) {
	var conv Conversation
	var agent Agent
	var archived, available int

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&conv.ID,
		&conv.CompanyID,
		&conv.AgentID,
		&conv.CustomerID,
		&conv.Timestamp,
		&archived,
		&agent.ID,
		&agent.CompanyID,
		&agent.Name,
		&available,
		&agent.Position,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.Archived = archived != 0
	agent.Available = available != 0
	conv.Agent = &agent

	conv.Messages, err = s.listMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// listMessages returns a conversation's messages in order
func (s *SQLiteStore) listMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, author, timestamp, content
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var author string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &author, &msg.Timestamp, &msg.Content); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Author = AuthorRole(author)
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}
