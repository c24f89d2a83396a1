// Package http exposes the services as a JSON API under /api/users/{uid}.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financas/internal/cache"
	"financas/internal/log"
	"financas/internal/services"
)

// Services bundles what the handlers call.
type Services struct {
	Transactions *services.TransactionService
	Invoices     *services.InvoiceService
	Cards        *services.CardService
	Ledger       *services.Ledger
	Projections  *services.ProjectionService
	Emergency    *services.EmergencyFundService
	Goals        *services.GoalService
}

// Options tune the server; zero values pick defaults.
type Options struct {
	Logger *log.Logger
	// Cache holds projection views; nil disables caching.
	Cache cache.Cache[any]
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// MutationsPerMinute bounds mutating requests per client IP (default 60).
	MutationsPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server
	svc         Services
	logger      *log.Logger
	cache       cache.Cache[any]
	ready       func(ctx context.Context) error
	rateLimiter *rateLimiter
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		svc:         svc,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		cache:       opts.Cache,
		ready:       opts.Ready,
		rateLimiter: newRateLimiter(opts.MutationsPerMinute),
		now:         opts.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.withSecurity(handler)
	handler = log.Middleware(opts.Logger, func(r *http.Request) string { return r.Header.Get("X-Request-ID") })(handler)
	handler = withRequestID(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	const u = "/api/users/{uid}"

	mux.HandleFunc("POST "+u+"/transactions", s.mutation(s.handleCreateTransaction))
	mux.HandleFunc("GET "+u+"/transactions", s.handleListTransactions)
	mux.HandleFunc("GET "+u+"/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST "+u+"/transactions/{id}/pay", s.mutation(s.handlePayTransaction))
	mux.HandleFunc("DELETE "+u+"/transactions/{id}", s.mutation(s.handleDeleteTransaction))

	mux.HandleFunc("POST "+u+"/accounts", s.mutation(s.handleOpenAccount))
	mux.HandleFunc("POST "+u+"/accounts/{id}/recalculate", s.mutation(s.handleRecalculate))
	mux.HandleFunc("GET "+u+"/net-worth", s.handleNetWorth)

	mux.HandleFunc("POST "+u+"/cards", s.mutation(s.handleCreateCard))
	mux.HandleFunc("GET "+u+"/cards", s.handleListCards)
	mux.HandleFunc("POST "+u+"/cards/{cardId}/deactivate", s.mutation(s.handleDeactivateCard))
	mux.HandleFunc("GET "+u+"/cards/{cardId}/cycle", s.handleCardCycle)
	mux.HandleFunc("POST "+u+"/cards/{cardId}/invoices", s.mutation(s.handleGenerateInvoice))

	mux.HandleFunc("GET "+u+"/invoices", s.handleListInvoices)
	mux.HandleFunc("GET "+u+"/invoices/{id}", s.handleGetInvoice)
	mux.HandleFunc("POST "+u+"/invoices/{id}/pay", s.mutation(s.handlePayInvoice))
	mux.HandleFunc("DELETE "+u+"/invoices/{id}", s.mutation(s.handleDeleteInvoice))
	mux.HandleFunc("POST "+u+"/invoices/auto-generate", s.mutation(s.handleAutoGenerate))

	mux.HandleFunc("GET "+u+"/projections/next-month", s.handleNextMonth)
	mux.HandleFunc("GET "+u+"/projections/cash-flow", s.handleCashFlow)
	mux.HandleFunc("GET "+u+"/insights", s.handleInsights)
	mux.HandleFunc("GET "+u+"/retrospective", s.handleRetrospective)

	mux.HandleFunc("GET "+u+"/emergency-fund", s.mutation(s.handleEmergencyStatus))
	mux.HandleFunc("POST "+u+"/emergency-fund/goal", s.mutation(s.handleCreateEmergencyGoal))

	mux.HandleFunc("POST "+u+"/goals", s.mutation(s.handleCreateGoal))
	mux.HandleFunc("GET "+u+"/goals", s.handleListGoals)
	mux.HandleFunc("GET "+u+"/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("POST "+u+"/goals/{id}/contributions", s.mutation(s.handleContribute))
	mux.HandleFunc("POST "+u+"/goals/{id}/withdrawals", s.mutation(s.handleWithdraw))
	mux.HandleFunc("POST "+u+"/goals/{id}/transfer", s.mutation(s.handleTransferToGoal))
	mux.HandleFunc("POST "+u+"/goals/{id}/withdraw-to-account", s.mutation(s.handleWithdrawToAccount))
	mux.HandleFunc("POST "+u+"/goals/{id}/cancel", s.mutation(s.handleCancelGoal))
}

// withRequestID makes sure every request carries an X-Request-ID, echoed in
// the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		r.Header.Set("X-Request-ID", id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// withSecurity sets security headers, logs probing requests and rate
// limits mutating methods per client IP.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := extractClientIP(r)
		setSecurityHeaders(w.Header())

		if isSuspicious(r) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mutation drops the user's cached views once the handler has run.
func (s *Server) mutation(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r)
		s.invalidate(r.PathValue("uid"))
	}
}

func (s *Server) invalidate(uid string) {
	if s.cache == nil || uid == "" {
		return
	}
	s.cache.DeletePrefix(cache.UserPrefix(uid))
}

// cached serves view of uid from the projection cache, computing it with
// load on a miss. Failures are never cached.
func cached[T any](s *Server, ctx context.Context, uid, view string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	key := cache.Key(uid, view)
	if v, ok := s.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			log.FromContext(ctx).DebugContext(ctx, "Projection cache hit", "key", key)
			return t, nil
		}
	}
	t, err := load()
	if err != nil {
		return t, err
	}
	s.cache.Set(key, t)
	return t, nil
}

// Shutdown stops accepting requests and the background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
