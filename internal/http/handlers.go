package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

type appMetrics struct {
	started       time.Time
	created       int64
	updated       int64
	deleted       int64
	logins        int64
	loginFailures int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.transactions.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	listStats := s.transactions.ListCache().Stats()
	checks["cache"] = map[string]any{
		"list_entries":    listStats.Size,
		"session_entries": s.sessions.Cache().Size(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	listStats := s.transactions.ListCache().Stats()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Total number of 5xx responses", traceMetrics.ServerErrors)
	gauge("http_response_time_microseconds", "Moving average response time", traceMetrics.AverageResponseTime)
	counter("transactions_created_total", "Total number of transactions created", atomic.LoadInt64(&s.appMetrics.created))
	counter("transactions_updated_total", "Total number of transactions updated", atomic.LoadInt64(&s.appMetrics.updated))
	counter("transactions_deleted_total", "Total number of transactions deleted", atomic.LoadInt64(&s.appMetrics.deleted))
	counter("logins_total", "Total successful logins", atomic.LoadInt64(&s.appMetrics.logins))
	counter("login_failures_total", "Total rejected logins", atomic.LoadInt64(&s.appMetrics.loginFailures))
	counter("cache_hits_total", "Total list cache hits", listStats.Hits)
	counter("cache_misses_total", "Total list cache misses", listStats.Misses)
	gauge("cache_entries", "Current list cache entries", int64(listStats.Size))
	gauge("session_entries", "Current sessions", int64(s.sessions.Cache().Size()))
	counter("rate_limit_hits_total", "Total rate limited requests", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.appMetrics.started).Seconds()))
}

// requireSession returns the request session or writes 401.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := auth.FromContext(r.Context())
	if err != nil {
		UnauthorizedError("authentication required").Write(w)
		return auth.Session{}, false
	}
	return sess, true
}

// storeContext bounds the store calls of one request.
func storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}

// writeError maps err to a status code. Only unexpected errors are logged as errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var criteriaErr *core.CriteriaError
	switch {
	case errors.Is(err, errMalformedBody), errors.As(err, &criteriaErr):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrInvalidCredentials):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError("transaction not found").Write(w)
	case isValidationError(err):
		UnprocessableEntityError(validationMessage(err)).Write(w)
	default:
		errType := applog.ErrorTypeInternal
		if errors.Is(err, context.DeadlineExceeded) {
			errType = applog.ErrorTypeDatabase
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().
				WithOperation(op).
				WithError(err, errType).
				Args()...)
		InternalServerError("internal error").Write(w)
	}
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrEmptyOwner,
	core.ErrEmptyPatch,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// validationMessage prefers the specific date message over the generic sentinel.
func validationMessage(err error) string {
	var dateErr *core.DateError
	if errors.As(err, &dateErr) {
		return dateErr.Error()
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}
