package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/metrics"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/rules"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/scoring"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/transactions"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. Read-only routes are always
// open; mutating routes sit behind the auth middleware when auth is
// enabled.
func NewServer(
	cfg domain.ServerConfig,
	authCfg domain.AuthConfig,
	ruleSvc *rules.Service,
	txSvc *transactions.Service,
	engine *scoring.Engine,
	repo domain.Repository,
	bus domain.EventBus,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	version string,
) *Server {
	handler := NewHandler(ruleSvc, txSvc, engine, repo, bus, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware(m))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Operational endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(authCfg))

		// Transaction scoring
		r.Post("/evaluate", handler.Evaluate)
		r.Post("/transactions", handler.CreateTransaction)
		r.Post("/transactions/process", handler.ProcessTransaction)

		// Transaction retrieval and review
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/transactions/stats", handler.TransactionStats)
		r.Get("/transactions/{id}", handler.GetTransaction)
		r.Post("/transactions/{id}/approve", handler.ApproveTransaction)
		r.Post("/transactions/{id}/reject", handler.RejectTransaction)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Put("/rules/{id}", handler.UpdateRule)
		r.Delete("/rules/{id}", handler.DeleteRule)
		r.Patch("/rules/{id}/toggle", handler.ToggleRule)

		// Reporting
		r.Get("/rejections/stats", handler.RejectionStats)
		r.Get("/audit-logs", handler.ListAuditLogs)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
