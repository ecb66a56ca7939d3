// Package gateway orchestrates the coven-connect server components.
//
// # Overview
//
// The Gateway owns the store, the session service, the event publisher and
// the servers in front of them. New wires everything from config;
// NewWithStore accepts an existing store for tests and embedding.
//
// # HTTP API
//
// Public endpoints:
//
//   - POST /api/session/init - Resolve or open the caller's conversation
//   - GET /api/conversations/{id} - Fetch a conversation projection
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store ping)
//
// Admin endpoints, behind JWT bearer auth when auth.jwt_secret is set:
//
//   - POST /api/admin/companies - Create a company and its agent roster
//   - PUT /api/admin/agents/{id}/availability - Mark an agent online or offline
//
// Request bodies are validated with go-playground/validator. Errors are JSON:
//
//	{"error": "no agents available", "code": "no_agents_available"}
//
// Session failure kinds map to statuses:
//
//	invalid_company_key     404
//	no_agents_available     503
//	store_unavailable       503
//	provisioning_incomplete 500
//
// Each session init runs under session.request_timeout.
//
// # gRPC
//
// When server.grpc_addr is set, a gRPC server exposes grpc.health.v1. It
// reports SERVING while the gateway runs and NOT_SERVING once shutdown begins.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled, then shuts down
package gateway
