// ABOUTME: Company, agent roster and customer persistence for the SQLite store
// ABOUTME: Customer creation is an atomic insert-or-get keyed on (device_id, company_id)

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateCompany inserts a company and its agent roster in a single transaction.
// IDs are generated for the company and any agent that lacks one; agent
// positions follow slice order. Returns ErrDuplicateCompany if the public key
// is taken.
func (s *SQLiteStore) CreateCompany(ctx context.Context, company *Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning company transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO companies (id, public_key, name, created_at)
		VALUES (?, ?, ?, ?)
	`, company.ID, company.PublicKey, company.Name, company.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateCompany
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	for i, agent := range company.Agents {
		if agent.ID == "" {
			agent.ID = uuid.New().String()
		}
		agent.CompanyID = company.ID
		agent.Position = i

		_, err := tx.ExecContext(ctx, `
			INSERT INTO agents (id, company_id, name, available, position)
			VALUES (?, ?, ?, ?, ?)
		`, agent.ID, agent.CompanyID, agent.Name, boolToInt(agent.Available), agent.Position)
		if err != nil {
			return fmt.Errorf("inserting agent %q: %w", agent.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing company: %w", err)
	}

	s.logger.Debug("created company", "id", company.ID, "agents", len(company.Agents))
	return nil
}

// FindCompanyByKey retrieves a company and its roster by public key.
// Returns ErrNotFound if no company matches, including for an empty key.
func (s *SQLiteStore) FindCompanyByKey(ctx context.Context, publicKey string) (*Company, error) {
	if publicKey == "" {
		return nil, ErrNotFound
	}

	var company Company
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, public_key, name, created_at
		FROM companies
		WHERE public_key = ?
	`, publicKey).Scan(&company.ID, &company.PublicKey, &company.Name, &createdAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying company: %w", err)
	}

	company.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	company.Agents, err = s.listAgents(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	return &company, nil
}

// listAgents returns a company's roster in position order
func (s *SQLiteStore) listAgents(ctx context.Context, companyID string) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, available, position
		FROM agents
		WHERE company_id = ?
		ORDER BY position ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		var available int
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Name, &available, &a.Position); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		a.Available = available != 0
		agents = append(agents, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}
	return agents, nil
}

// SetAgentAvailability flips an agent's online flag.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) SetAgentAvailability(ctx context.Context, agentID string, available bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE agents SET available = ? WHERE id = ?`, boolToInt(available), agentID)
	if err != nil {
		return fmt.Errorf("updating agent availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated agent availability", "agent_id", agentID, "available", available)
	return nil
}

// FindCustomer retrieves a customer by device ID within a company.
// Returns ErrNotFound if the device has never contacted the company.
func (s *SQLiteStore) FindCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error) {
	var customer Customer
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, company_id, created_at
		FROM customers
		WHERE device_id = ? AND company_id = ?
	`, deviceID, companyID).Scan(&customer.ID, &customer.DeviceID, &customer.CompanyID, &createdAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	customer.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &customer, nil
}

// CreateCustomer inserts a customer unless one already exists for the
// (deviceID, companyID) pair, then returns whichever row is stored. Concurrent
// callers for the same pair all receive the same customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, deviceID, companyID string) (*Customer, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, device_id, company_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, company_id) DO NOTHING
	`, uuid.New().String(), deviceID, companyID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting customer: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.logger.Debug("created customer", "device_id", deviceID, "company_id", companyID)
	} else {
		s.logger.Debug("customer already existed", "device_id", deviceID, "company_id", companyID)
	}

	customer, err := s.FindCustomer(ctx, deviceID, companyID)
	if err != nil {
		return nil, fmt.Errorf("reading customer after insert: %w", err)
	}
	return customer, nil
}
