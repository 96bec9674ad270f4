package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// storeTimeout bounds every store call made while serving a request.
const storeTimeout = 7 * time.Second

type Server struct {
	http.Server

	logger       *applog.Logger
	transactions *services.TransactionService
	sessions     *auth.SessionStore
	sessionTTL   time.Duration

	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	SessionTTL         time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, transactions *services.TransactionService, sessions *auth.SessionStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		logger:       httpLogger,
		transactions: transactions,
		sessions:     sessions,
		sessionTTL:   opts.SessionTTL,
		detector:     security.NewDetector(),
		rateLimiter:  ratelimit.NewLimiter(limits),
		appMetrics:   newAppMetrics(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger.WithComponent(applog.ComponentTrace), s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/{id}", s.handleTransaction)
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/years", s.handleYears)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// middleware wraps h, outermost first: instrumentation, tracing, security
// headers, probe detection, rate limiting, request logger and session.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = auth.Middleware(s.sessions)(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(s.logger)(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity))(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return otelhttp.NewHandler(h, "fintrack")
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.NewFields().
			WithComponent(applog.ComponentRateLimit).
			WithClientIP(s.detector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, "", "").
			Args()...)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
