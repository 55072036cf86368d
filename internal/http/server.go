// Package http exposes the card ledger as a JSON API behind JWT auth.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"

	"cardledger/internal/ledger"
	"cardledger/internal/log"
)

const readyTimeout = 5 * time.Second

type Options struct {
	JWTSecret          string
	CORSOrigins        []string
	RateLimitPerMinute int
	// Ready reports whether the backing store is reachable. Nil means always
	// ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

// Server wraps http.Server with the ledger routes.
type Server struct {
	http.Server

	ledger     *ledger.Ledger
	tokenAuth  *jwtauth.JWTAuth
	ready      func(ctx context.Context) error
	logger     *log.Logger
	structured *log.StructuredLogger
	secMetrics securityMetrics
	now        func() time.Time
	startedAt  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l *ledger.Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		cfg := log.DefaultConfig()
		cfg.Component = log.ComponentHTTP
		logger = log.New(cfg)
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 120
	}

	s := &Server{
		ledger:     l,
		tokenAuth:  NewTokenAuth(opts.JWTSecret),
		ready:      opts.Ready,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		now:        time.Now,
		startedAt:  time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(middleware.Recoverer)
	r.Use(s.withSecurity)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	writeLimit := httprate.Limit(opts.RateLimitPerMinute, time.Minute,
		httprate.WithKeyFuncs(clientIPKey),
		httprate.WithLimitHandler(s.onRateLimited))

	r.Route("/api", func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.tokenAuth))
		r.Use(s.authenticate)

		r.Route("/credit-cards", func(r chi.Router) {
			r.Get("/", s.handleListCards)
			r.Get("/{id}", s.handleGetCard)
			r.Group(func(r chi.Router) {
				r.Use(writeLimit)
				r.Post("/", s.handleCreateCard)
				r.Put("/{id}", s.handleUpdateCard)
				r.Delete("/{id}", s.handleDeleteCard)
			})
		})

		r.Route("/credit-card-expenses", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Get("/card/{cardId}", s.handleListCardEntries)
			r.Get("/{id}", s.handleGetEntry)
			r.Group(func(r chi.Router) {
				r.Use(writeLimit)
				r.Post("/", s.handleCreateEntry)
				r.Post("/with-installments", s.handleCreateInstallments)
				r.Post("/existing-with-installments", s.handleCreateRemainingInstallments)
				r.Put("/{id}", s.handleUpdateEntry)
				r.Delete("/{id}", s.handleDeleteEntry)
				r.Patch("/{id}/pay", s.handleTogglePaid)
			})
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server",
			log.FieldOperation, log.OpShutdown,
			"rate_limit_hits", atomic.LoadInt64(&s.secMetrics.rateLimitHits),
			"auth_failures", atomic.LoadInt64(&s.secMetrics.authFailures),
			"suspicious_requests", atomic.LoadInt64(&s.secMetrics.suspiciousRequests))
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "storage": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "storage": "ok"})
}
