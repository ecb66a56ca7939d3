// ABOUTME: Gateway orchestrator that coordinates the HTTP and gRPC health servers
// ABOUTME: Owns the store, session service and event publisher lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/2389/coven-connect/internal/auth"
	"github.com/2389/coven-connect/internal/config"
	"github.com/2389/coven-connect/internal/events"
	"github.com/2389/coven-connect/internal/session"
	"github.com/2389/coven-connect/internal/store"
)

// Gateway orchestrates the coven-connect server components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	sessions   *session.Service
	publisher  events.Publisher
	verifier   *auth.JWTVerifier // nil when admin auth is disabled
	validate   *validator.Validate
	grpcServer *grpc.Server  // nil when server.grpc_addr is empty
	health     *health.Server // nil when server.grpc_addr is empty
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the SQLite store at the configured path.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initPublisher connects to the event broker, or returns NopPublisher when
// events are disabled.
func initPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing event publisher: %w", err)
	}
	logger.Info("domain events enabled", "exchange", cfg.Events.Exchange)
	return p, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := initPublisher(cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	gw, err := NewWithStore(cfg, s, publisher, logger)
	if err != nil {
		publisher.Close()
		s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway around an existing store and publisher.
// The Gateway takes ownership of both and closes them on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, publisher events.Publisher, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	sessions := session.New(s, session.Config{
		WelcomeMessage: cfg.Session.WelcomeMessage,
		Publisher:      publisher,
	}, logger)

	gw := &Gateway{
		config:    cfg,
		store:     s,
		sessions:  sessions,
		publisher: publisher,
		validate:  newValidator(),
		logger:    logger.With("component", "gateway"),
	}

	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = verifier
	} else {
		gw.logger.Warn("admin auth disabled - no jwt_secret configured")
	}

	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer, gw.health = createGRPCServer()
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the HTTP handler with all routes registered.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// Public session API
	mux.HandleFunc("POST /api/session/init", g.handleSessionInit)
	mux.HandleFunc("GET /api/conversations/{id}", g.handleGetConversation)

	// Admin API - auth required if JWT secret is configured
	admin := http.NewServeMux()
	admin.HandleFunc("POST /api/admin/companies", g.handleCreateCompany)
	admin.HandleFunc("PUT /api/admin/agents/{id}/availability", g.handleSetAgentAvailability)

	var adminHandler http.Handler = admin
	if g.verifier != nil {
		adminHandler = auth.HTTPAuthMiddleware(g.verifier, g.logger)(admin)
	}
	mux.Handle("/api/admin/", adminHandler)

	return mux
}

// setupTCPListeners creates TCP listeners for HTTP and, if configured, gRPC.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"grpc_addr", g.config.Server.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return grpcLn, httpLn, nil
}

// startServers starts the servers in goroutines, returning error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	grpcListener, httpListener, err := g.setupTCPListeners()
	if err != nil {
		return err
	}

	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	errs = appendCloseError(errs, "publisher close", g.publisher.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
