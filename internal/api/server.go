// Package api exposes finflow over HTTP: transaction queries, analytics,
// operational status, and an email ingestion trigger, all behind per-key
// rate limiting.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finflow/finflow/internal/breaker"
	"github.com/finflow/finflow/internal/extract"
	"github.com/finflow/finflow/internal/llm"
	"github.com/finflow/finflow/internal/metrics"
	"github.com/finflow/finflow/internal/ratelimit"
	"github.com/finflow/finflow/internal/service"
)

// Deps carries the components the server operates on. Storage and Logger
// are required; the rest degrade gracefully when nil.
type Deps struct {
	Storage   service.Storage
	Source    service.MessageSource
	Extractor *extract.Extractor
	Limiter   *ratelimit.Limiter
	Breakers  *breaker.Registry
	Tracker   *metrics.Tracker
	Cache     *llm.ResponseCache
	Prices    metrics.PriceTable
	Logger    *slog.Logger
}

// Server is the finflow HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
}

// NewServer wires routes and middleware around the given dependencies.
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil {
		return nil, errors.New("api server requires storage")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Prices == nil {
		deps.Prices = metrics.DefaultPrices()
	}

	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if deps.Limiter != nil {
		r.Use(rateLimiter(deps.Limiter, deps.Logger))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/circuit-breakers", s.handleCircuitBreakers)
	r.Post("/fetch", s.handleFetch)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/transactions", s.handleListTransactions)
		r.Get("/transactions/{emailID}", s.handleGetTransaction)
		r.Get("/analytics/summary", s.handleSummary)
		r.Get("/analytics/merchants", s.handleTopMerchants)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
