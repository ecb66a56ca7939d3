// ABOUTME: Admin HTTP handlers for provisioning companies and agent availability
// ABOUTME: Mounted under /api/admin/ behind JWT auth when a secret is configured

package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/2389/coven-connect/internal/auth"
	"github.com/2389/coven-connect/internal/store"
)

// CreateCompanyRequest is the JSON request body for POST /api/admin/companies.
type CreateCompanyRequest struct {
	PublicKey string               `json:"public_key" validate:"required,max=256"`
	Name      string               `json:"name" validate:"max=256"`
	Agents    []CreateAgentRequest `json:"agents" validate:"dive"`
}

// CreateAgentRequest is one roster entry in CreateCompanyRequest.
type CreateAgentRequest struct {
	Name      string `json:"name" validate:"required,max=256"`
	Available bool   `json:"available"`
}

// SetAvailabilityRequest is the JSON request body for
// PUT /api/admin/agents/{id}/availability.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// AgentResponse is the JSON form of a roster entry.
type AgentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Position  int    `json:"position"`
}

// CompanyResponse is the JSON response for company provisioning.
type CompanyResponse struct {
	ID        string          `json:"id"`
	PublicKey string          `json:"public_key"`
	Name      string          `json:"name"`
	Agents    []AgentResponse `json:"agents"`
	CreatedAt string          `json:"created_at"`
}

// handleCreateCompany handles POST /api/admin/companies requests.
func (g *Gateway) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := g.decodeRequest(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	company := &store.Company{
		PublicKey: req.PublicKey,
		Name:      req.Name,
		Agents: lo.Map(req.Agents, func(a CreateAgentRequest, _ int) *store.Agent {
			return &store.Agent{Name: a.Name, Available: a.Available}
		}),
	}

	err := g.store.CreateCompany(r.Context(), company)
	if errors.Is(err, store.ErrDuplicateCompany) {
		g.sendJSONError(w, http.StatusConflict, "company already exists")
		return
	}
	if err != nil {
		g.logger.Error("creating company", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	g.logger.Info("company created",
		"company_id", company.ID,
		"agents", len(company.Agents),
		"by", adminSubject(r))

	g.writeJSON(w, http.StatusCreated, CompanyResponse{
		ID:        company.ID,
		PublicKey: company.PublicKey,
		Name:      company.Name,
		Agents: lo.Map(company.Agents, func(a *store.Agent, _ int) AgentResponse {
			return AgentResponse{ID: a.ID, Name: a.Name, Available: a.Available, Position: a.Position}
		}),
		CreatedAt: company.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleSetAgentAvailability handles PUT /api/admin/agents/{id}/availability.
// This is the write path for whatever tracks agent presence.
func (g *Gateway) handleSetAgentAvailability(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req SetAvailabilityRequest
	if err := g.decodeRequest(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := g.store.SetAgentAvailability(r.Context(), agentID, *req.Available)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		g.logger.Error("setting agent availability", "error", err, "agent_id", agentID)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	g.logger.Info("agent availability changed",
		"agent_id", agentID,
		"available", *req.Available,
		"by", adminSubject(r))

	g.writeJSON(w, http.StatusOK, map[string]any{
		"id":        agentID,
		"available": *req.Available,
	})
}

// adminSubject returns the authenticated caller, or "anonymous" when admin
// auth is disabled.
func adminSubject(r *http.Request) string {
	if a := auth.FromContext(r.Context()); a != nil {
		return a.Subject
	}
	return "anonymous"
}
