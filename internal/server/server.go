package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
	"github.com/nakamori-labs/foresight/internal/server/handler"
	"github.com/nakamori-labs/foresight/internal/server/middleware"
	"github.com/nakamori-labs/foresight/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // guards admin routes; if empty, they are open

	// Proposal endpoint rate limit, per client IP.
	ProposalLimit  int
	ProposalWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Metadata *handler.MetadataHandler
	View     *handler.ViewHandler
	Proposal *handler.ProposalHandler
	Admin    *handler.AdminHandler
}

// Server is the HTTP + WebSocket API for the prediction market backend.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// CORS and request logging apply to every route; the API key auth guards
// only the admin routes, and the rate limiter only the proposal route.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Metadata.GetMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Metadata.CreateMetadata)

	mux.HandleFunc("GET /api/view/markets", handlers.View.ListMarketViews)
	mux.HandleFunc("GET /api/view/markets/{id}", handlers.View.GetMarketView)

	var proposals http.Handler = http.HandlerFunc(handlers.Proposal.SubmitProposal)
	if limiter != nil {
		limit := cfg.ProposalLimit
		window := cfg.ProposalWindow
		if limit <= 0 {
			limit = 5
		}
		if window <= 0 {
			window = time.Minute
		}
		proposals = middleware.RateLimit(limiter, limit, window)(proposals)
	}
	mux.Handle("POST /api/proposals", proposals)

	auth := middleware.Auth(cfg.APIKey)
	mux.Handle("POST /api/admin/resolve", auth(http.HandlerFunc(handlers.Admin.ResolveMarket)))
	mux.Handle("POST /api/admin/stake", auth(http.HandlerFunc(handlers.Admin.SetStake)))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// Proposal submissions wait for on-chain confirmation, so the
		// write timeout has to cover a couple of block intervals.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
