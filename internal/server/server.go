// Package server exposes the evaluation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/intentguard/internal/planner"
	"github.com/ppiankov/intentguard/internal/ratelimit"
	"github.com/ppiankov/intentguard/internal/service"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":5001"

const maxBodyBytes = 1 << 20

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// AllowedOrigin is echoed in CORS responses. Empty allows any origin.
	AllowedOrigin string
	// RateLimit bounds evaluation requests per client IP. Zero disables it.
	RateLimit ratelimit.Limit
}

// Server is the HTTP front end.
type Server struct {
	svc     *service.Service
	planner *planner.Planner
	cfg     Config
	limiter *ratelimit.Tracker
	router  chi.Router
}

// New builds the router.
func New(svc *service.Service, p *planner.Planner, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if p == nil {
		p = planner.New(nil, planner.Config{})
	}
	s := &Server{svc: svc, planner: p, cfg: cfg, limiter: ratelimit.NewTracker(cfg.RateLimit, nil)}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestLogger)
	r.Use(s.cors)
	r.Use(limitBody)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/policy", s.handlePolicy)
		api.Group(func(limited chi.Router) {
			limited.Use(s.rateLimit)
			limited.Post("/execute", s.handleExecute)
			limited.Post("/execute-with-intent", s.handleExecuteWithIntent)
			limited.Post("/evaluate", s.handleEvaluate)
		})
		api.Post("/confirm-booking", s.handleConfirmBooking)
		api.Get("/traces", s.handleListTraces)
		api.Get("/traces/{id}", s.handleGetTrace)
		api.Get("/approvals", s.handleListApprovals)
		api.Post("/approvals/{id}/approve", s.handleApprove)
		api.Post("/approvals/{id}/deny", s.handleDeny)
	})

	r.Get("/payment/success", s.handlePaymentSuccess)
	r.Get("/payment/cancel", s.handlePaymentCancel)
	r.Get("/payment/{id}", s.handlePayment)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	log.Info().Str("addr", lis.Addr().String()).Msg("http server listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
