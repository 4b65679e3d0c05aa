package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "household/internal/log"
	"household/internal/middleware/security"
	"household/internal/middleware/trace"
	"household/internal/services"
)

// ReadyFunc reports whether the backing store can serve requests.
type ReadyFunc func(ctx context.Context) error

// Options tune a Server beyond its required collaborators.
type Options struct {
	Logger           *applog.Logger
	Ready            ReadyFunc
	WritesPerMinute  int
	ExportsPerMinute int
}

// appMetrics counts domain events served over HTTP.
type appMetrics struct {
	expensesAdded   int64
	exportsInline   int64
	exportsQueued   int64
	exportsRejected int64
}

// Server is the JSON API over a LedgerService.
type Server struct {
	*http.Server
	svc          *services.LedgerService
	ready        ReadyFunc
	logger       *applog.Logger
	structured   *applog.StructuredLogger
	tracer       *trace.Middleware
	guard        *requestGuard
	metrics      securityMetrics
	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. The returned server is not started.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:        svc,
		ready:      opts.Ready,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
		tracer:     trace.NewMiddleware(logger, extractClientIP),
	}
	s.guard = newRequestGuard(opts.WritesPerMinute, opts.ExportsPerMinute, &s.metrics)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/periods/{year}/{month}", s.handlePeriod)
	mux.HandleFunc("GET /api/periods/{year}/{month}/totals", s.handlePeriodTotals)

	mux.HandleFunc("GET /api/salaries", s.handleGetSalaries)
	mux.HandleFunc("PUT /api/salaries", s.handleSetSalaries)
	mux.HandleFunc("PUT /api/extra-incomes", s.handleUpsertExtraIncome)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{name}", s.handleDeleteCategory)

	mux.HandleFunc("POST /api/reports", s.handleExportReport)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.withGuards(h)
	h = headers.Middleware(h)
	h = applog.RequestIDMiddleware(trace.GetRequestIDFromRequest)(h)
	h = applog.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// withGuards flags requests that do not look like API traffic and applies
// per-resource write limits.
func (s *Server) withGuards(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if reason := s.guard.suspicion(r); reason != "" {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		if resource := resourceOf(r.URL.Path); isWrite(r.Method) && resource != "" &&
			!s.guard.allow(clientIP, resource, time.Now()) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns counters for the metrics log line.
func (s *Server) Stats() map[string]int64 {
	return map[string]int64{
		"requests_total":      s.tracer.TotalRequests(),
		"expenses_added":      atomic.LoadInt64(&s.appMetrics.expensesAdded),
		"exports_inline":      atomic.LoadInt64(&s.appMetrics.exportsInline),
		"exports_queued":      atomic.LoadInt64(&s.appMetrics.exportsQueued),
		"exports_rejected":    atomic.LoadInt64(&s.appMetrics.exportsRejected),
		"rate_limit_hits":     atomic.LoadInt64(&s.metrics.rateLimitHits),
		"suspicious_requests": atomic.LoadInt64(&s.metrics.suspiciousRequests),
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.guard.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			ServiceUnavailableError("store not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
