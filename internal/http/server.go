package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kuberx/internal/analytics"
	"kuberx/internal/auth"
	"kuberx/internal/core"
	"kuberx/internal/log"
	"kuberx/internal/middleware/ratelimit"
	"kuberx/internal/middleware/security"
	"kuberx/internal/middleware/trace"
	"kuberx/internal/services"
)

// Ledger is the loan service as seen by the handlers.
type Ledger interface {
	Dashboard(ctx context.Context, opts analytics.Options) (analytics.Dashboard, error)
	Interest(ctx context.Context, opts analytics.Options) (analytics.InterestReport, error)
	Trend(ctx context.Context, g analytics.Granularity) ([]analytics.Bucket, error)
	Growth(ctx context.Context) (analytics.GrowthSet, error)
	Records(ctx context.Context, f services.RecordFilter) ([]analytics.Record, error)
	Record(ctx context.Context, row int) (analytics.Record, error)
	CreateLoan(ctx context.Context, l core.Loan) (services.Created, error)
	CloseLoan(ctx context.Context, row int) error
	Extract(ctx context.Context, text string) (core.Loan, error)
	Search(ctx context.Context, req services.SearchRequest) ([]services.Hit, error)
}

var _ Ledger = (*services.LoanService)(nil)

// Config wires the server. Auth nil disables login and bearer checks; Ready
// nil makes /readyz always succeed.
type Config struct {
	Addr      string
	Logger    *log.Logger
	Auth      *auth.Authenticator
	RateLimit ratelimit.Config
	Ready     func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger      Ledger
	auth        *auth.Authenticator
	ready       func(ctx context.Context) error
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(ledger Ledger, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	detector := security.NewDetector()
	s := &Server{
		ledger:      ledger,
		auth:        cfg.Auth,
		ready:       cfg.Ready,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		detector:    detector,
		tracer:      trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.tracer.Middleware)
	router.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	router.Use(detector.Middleware)
	router.Use(s.rateLimiter.Middleware(detector.ExtractClientIP, http.MethodPost))

	router.Get("/healthz", handleHealth)
	router.Get("/readyz", s.handleReady)

	router.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/trends/{granularity}", s.handleTrend)
			r.Get("/growth", s.handleGrowth)
			r.Get("/interest", s.handleInterest)
			r.Get("/export.xlsx", s.handleExport)
			r.Get("/search", s.handleSearch)

			r.Get("/loans", s.handleListLoans)
			r.Post("/loans", s.handleCreateLoan)
			r.Post("/loans/extract", s.handleExtract)
			r.Get("/loans/{row}", s.handleGetLoan)
			r.Post("/loans/{row}/close", s.handleCloseLoan)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports the counters of the request middleware.
type Metrics struct {
	Requests   trace.Metrics
	RateLimit  ratelimit.Metrics
	Suspicious security.DetectionMetrics
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:   s.tracer.GetMetrics(),
		RateLimit:  s.rateLimiter.GetMetrics(),
		Suspicious: s.detector.GetMetrics(),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
