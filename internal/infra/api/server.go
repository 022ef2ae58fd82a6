package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	red "billing-reconciler/internal/infra/redis"
	"billing-reconciler/internal/usecase"
)

// ExportLimiter throttles CSV exports per admin subject.
type ExportLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (red.Quota, error)
}

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	ExportLimit    int
	ExportEvery    time.Duration
}

type Server struct {
	webhooks usecase.WebhookIngestor
	refunds  usecase.RefundUseCase
	finance  usecase.FinanceUseCase
	exports  usecase.ExportUseCase
	payments usecase.PaymentUseCase
	subs     usecase.SubscriptionUseCase
	auth     *AuthManager
	limiter  ExportLimiter
	opts     Options
	log      *zerolog.Logger
}

type Deps struct {
	Webhooks      usecase.WebhookIngestor
	Refunds       usecase.RefundUseCase
	Finance       usecase.FinanceUseCase
	Exports       usecase.ExportUseCase
	Payments      usecase.PaymentUseCase
	Subscriptions usecase.SubscriptionUseCase
	Auth          *AuthManager
	Limiter       ExportLimiter // nil disables export throttling
}

func NewServer(d Deps, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Server{
		webhooks: d.Webhooks,
		refunds:  d.Refunds,
		finance:  d.Finance,
		exports:  d.Exports,
		payments: d.Payments,
		subs:     d.Subscriptions,
		auth:     d.Auth,
		limiter:  d.Limiter,
		opts:     opts,
		log:      &l,
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, TraceID, RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/refunds/webhook", s.handleWebhook)
		r.Post("/payments/verify", s.handleVerifyPayment)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(s.auth))

			r.Post("/refunds", s.handleInitiateRefund)
			r.Get("/refunds", s.handleListRefunds)
			r.Get("/refunds/{id}", s.handleGetRefund)
			r.Post("/refunds/{id}/sync", s.handleSyncRefund)

			r.Get("/finance/metrics", s.handleFinanceMetrics)
			r.Get("/finance/monthly", s.handleFinanceMonthly)
			r.Get("/export", s.handleExport)

			r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
		})
	})
	return r
}
