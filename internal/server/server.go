// Package server wires handlers and middleware into the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/handler"
	"jobpilot-edge/internal/middleware"
	"jobpilot-edge/pkg/logger"
)

// Deps are the collaborators behind the routes. Billing and Auth are
// optional; a nil Billing leaves the payment routes unregistered and a nil
// Auth leaves them open.
type Deps struct {
	Catalog credits.Catalog
	Charger handler.Charger
	Relay   handler.Forwarder
	DB      handler.Pinger
	Billing *handler.BillingHandler
	Auth    *middleware.BearerAuth
}

// NewRouter builds the route table:
//
//	POST /deduct/{feature}   one route per catalog entry
//	POST /relay              forward to the workflow engine
//	POST /billing/checkout   start a credit purchase
//	POST /webhook/stripe     Stripe events
//	GET  /health
func NewRouter(deps Deps, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", handler.Health(deps.DB))

	deduct := handler.NewDeductHandler(deps.Charger, logger.Named("deduct"))
	r.Route("/deduct", func(r chi.Router) {
		for _, key := range deps.Catalog.Keys() {
			f, _ := deps.Catalog.Get(key)
			r.Post("/"+key, deduct.Handle(f))
		}
	})

	relayHandler := handler.NewRelayHandler(deps.Relay, logger.Named("relay"))
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(middleware.RequireBearer(deps.Auth, handler.WriteError))
		}
		r.Post("/relay", relayHandler.Handle)
		if deps.Billing != nil {
			r.Post("/billing/checkout", deps.Billing.Checkout)
		}
	})

	if deps.Billing != nil {
		r.Post("/webhook/stripe", deps.Billing.StripeWebhook)
	}

	return r
}

type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(cfg Config, h http.Handler, logger *logger.Logger) *Server {
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: logger,
	}
}

// Start blocks serving HTTP. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
