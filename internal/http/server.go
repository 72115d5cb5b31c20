package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "careanalytics/internal/log"
	"careanalytics/internal/middleware/ratelimit"
	"careanalytics/internal/middleware/security"
	"careanalytics/internal/middleware/trace"
	"careanalytics/internal/services"
	"careanalytics/internal/storage"
)

// Options tunes the server beyond its required collaborators.
type Options struct {
	// Gatherer backs /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	// PostsPerMinute caps POST requests per client IP.
	PostsPerMinute int
	// TrustedProxies lists CIDRs allowed to set forwarding headers.
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type Server struct {
	http.Server
	reports     *services.ReportService
	pinger      storage.Pinger
	logger      *applog.Logger
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, reports *services.ReportService, pinger storage.Pinger, logger *applog.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}

	ips, err := security.NewIPExtractor(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		reports:     reports,
		pinger:      pinger,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.PostsPerMinute}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(trace.NewMiddleware(logger, ips.ClientIP).Middleware)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(trace.FromRequest))
	r.Use(s.rateLimiter.Middleware(ips.ClientIP, s.handleRateLimited, http.MethodPost))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/"+services.KindAttendanceAllowance, s.handleAllowanceReport)
			r.Post("/"+services.KindAttendanceAllowance+"/export", s.handleAllowanceExport)
			r.Get("/{kind}", s.handleCommitmentReport)
			r.Get("/{kind}/snapshot", s.handleSnapshot)
			r.Post("/{kind}/export", s.handleCommitmentExport)
		})

		r.Get("/deprivation/{postcode}", s.handleClassifyPostcode)
		r.Post("/deprivation/imports", s.handleRequestImport)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	writeJSONError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
