package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"billing-reconciler/internal/infra/api"
	pg "billing-reconciler/internal/infra/db/postgres"
	red "billing-reconciler/internal/infra/redis"
	"billing-reconciler/internal/infra/sched"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the lifecycle scheduler and the refund reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	deps := api.Deps{
		Webhooks:      a.webhooks,
		Refunds:       a.refunds,
		Finance:       a.finance,
		Exports:       a.exports,
		Payments:      a.payments,
		Subscriptions: a.subs,
		Auth:          api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
	}
	if a.redis != nil {
		deps.Limiter = red.NewRateLimiter(a.redis)
	}
	srv := api.NewServer(deps, api.Options{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.Webhook.MaxBodyBytes,
		ExportLimit:    cfg.Admin.ExportLimit,
		ExportEvery:    cfg.Admin.ExportEvery,
	}, a.log)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lifecycle, err := sched.NewLifecycleWorker(a.life, a.locker(), cfg.Lifecycle, a.log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := lifecycle.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		lifecycle.Stop()
		return nil
	})
	if cfg.Reconciler.Enabled {
		rec := sched.NewRefundReconciler(a.refunds, cfg.Reconciler, a.log)
		g.Go(func() error {
			if err := rec.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		pg.ReportPoolStats(gctx, a.pool, 15*time.Second)
		return nil
	})

	err = g.Wait()
	a.log.Info().Msg("shutdown complete")
	return err
}
