// Package http exposes the ledger services as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"carteira/internal/fx"
	"carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
)

// HeaderOwnerID names the caller whose records a request acts on.
const HeaderOwnerID = "X-Owner-ID"

// maxBodyBytes bounds JSON bodies and CSV uploads.
const maxBodyBytes = 4 << 20

// Services are the handlers' dependencies. FX may be nil.
type Services struct {
	Ledger        *services.Ledger
	Wallets       *services.Wallets
	Obligations   *services.Obligations
	Budgets       *services.Budgets
	Goals         *services.Goals
	Notifications *services.Notifications
	Importer      *services.Importer
	Categories    *services.Categories
	FX            *fx.Service
}

// Options tune the server. Zero values pick defaults.
type Options struct {
	RateLimitPerMinute int
	// TrustedProxies extend the networks whose X-Forwarded-For is honoured.
	TrustedProxies []string
	Logger         *log.Logger
	// Ready reports whether dependencies are reachable, for /readyz.
	Ready func(context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc      Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	ready    func(context.Context) error
	now      func() time.Time
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	ready := opts.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}

	s := &Server{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(logger),
		ready:    ready,
		now:      now,
		started:  now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please try again later"})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.detector.Middleware(limited(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /transactions", s.owned(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.owned(s.handleListTransactions))
	mux.HandleFunc("POST /transactions/batch", s.owned(s.handleCreateBatch))
	mux.HandleFunc("POST /transactions/import", s.owned(s.handleImport))
	mux.HandleFunc("GET /transactions/summary", s.owned(s.handleSummary))
	mux.HandleFunc("GET /transactions/{id}", s.owned(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.owned(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.owned(s.handleDeleteTransaction))

	mux.HandleFunc("POST /wallets", s.owned(s.handleCreateWallet))
	mux.HandleFunc("GET /wallets", s.owned(s.handleListWallets))
	mux.HandleFunc("GET /wallets/{id}", s.owned(s.handleGetWallet))
	mux.HandleFunc("PUT /wallets/{id}", s.owned(s.handleUpdateWallet))
	mux.HandleFunc("DELETE /wallets/{id}", s.owned(s.handleDeactivateWallet))
	mux.HandleFunc("POST /wallets/{id}/recalculate", s.owned(s.handleRecalculateWallet))
	mux.HandleFunc("GET /wallets/{id}/drift", s.owned(s.handleWalletDrift))

	mux.HandleFunc("POST /transfers", s.owned(s.handleCreateTransfer))
	mux.HandleFunc("GET /transfers", s.owned(s.handleListTransfers))

	mux.HandleFunc("POST /obligations", s.owned(s.handleCreateObligation))
	mux.HandleFunc("GET /obligations", s.owned(s.handleListObligations))
	mux.HandleFunc("PUT /obligations/{id}", s.owned(s.handleUpdateObligation))
	mux.HandleFunc("POST /obligations/{id}/pay", s.owned(s.handlePayObligation))
	mux.HandleFunc("DELETE /obligations/{id}", s.owned(s.handleDeactivateObligation))

	mux.HandleFunc("POST /budgets", s.owned(s.handleCreateBudget))
	mux.HandleFunc("GET /budgets", s.owned(s.handleListBudgets))
	mux.HandleFunc("GET /budgets/status", s.owned(s.handleBudgetStatus))
	mux.HandleFunc("PUT /budgets/{id}", s.owned(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /budgets/{id}", s.owned(s.handleDeactivateBudget))

	mux.HandleFunc("POST /goals", s.owned(s.handleCreateGoal))
	mux.HandleFunc("GET /goals", s.owned(s.handleListGoals))
	mux.HandleFunc("PUT /goals/{id}", s.owned(s.handleUpdateGoal))
	mux.HandleFunc("POST /goals/{id}/contribute", s.owned(s.handleContributeGoal))
	mux.HandleFunc("DELETE /goals/{id}", s.owned(s.handleDeactivateGoal))

	mux.HandleFunc("GET /categories", s.owned(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.owned(s.handleCreateCategory))
	mux.HandleFunc("PUT /categories/{id}", s.owned(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.owned(s.handleDeleteCategory))

	mux.HandleFunc("GET /notifications", s.owned(s.handleNotifications))

	mux.HandleFunc("GET /fx/convert", s.handleConvert)
	mux.HandleFunc("GET /fx/currencies", s.handleCurrencies)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requests := s.tracer.GetMetrics()
	limits := s.limiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	counter := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
	}
	gauge := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, value)
	}

	counter("http_requests_total", "Requests served.", requests.TotalRequests)
	gauge("http_request_duration_ms_avg", "Mean request duration in milliseconds.", requests.AverageResponseTimeMs)
	counter("rate_limit_rejections_total", "Requests rejected by the rate limiter.", limits.TotalHits)
	gauge("rate_limit_clients", "Clients tracked by the rate limiter.", limits.ClientCount)
	counter("suspicious_requests_total", "Requests flagged as suspicious.", s.detector.SuspiciousRequests())
	if s.svc.FX != nil {
		gauge("fx_cache_entries", "Exchange rate tables held in memory.", int64(s.svc.FX.Cache().Size()))
	}
	gauge("uptime_seconds", "Seconds since the server was built.", int64(s.now().Sub(s.started).Seconds()))
}
