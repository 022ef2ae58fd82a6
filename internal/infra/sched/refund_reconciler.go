package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain"
	uc "billing-reconciler/internal/domain/ports/usecase"
)

// RefundReconciler periodically pulls the gateway status of refunds that have
// not moved for a while. It covers webhooks that were lost or never sent.
type RefundReconciler struct {
	syncer     uc.RefundSyncer
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewRefundReconciler(syncer uc.RefundSyncer, cfg config.ReconcilerConfig, logger *zerolog.Logger) *RefundReconciler {
	l := logger.With().Str("component", "RefundReconciler").Logger()
	interval, staleAfter, batch := cfg.Interval, cfg.StaleAfter, cfg.BatchSize
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	return &RefundReconciler{syncer: syncer, interval: interval, staleAfter: staleAfter, batch: batch, log: &l, now: time.Now}
}

func (w *RefundReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting refund reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping refund reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick reconciles one batch and returns how many refunds changed status.
func (w *RefundReconciler) Tick(ctx context.Context) int {
	stale, err := w.syncer.ListStale(ctx, w.now().Add(-w.staleAfter), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale refunds failed")
		return 0
	}
	changed := 0
	for _, r := range stale {
		if ctx.Err() != nil {
			return changed
		}
		got, err := w.syncer.CheckStatus(ctx, r.ID)
		switch {
		case err == nil:
			if got.Status != r.Status {
				changed++
				w.log.Info().Str("refund_id", r.ID).Str("from", string(r.Status)).Str("to", string(got.Status)).Msg("refund reconciled")
			}
		case errors.Is(err, domain.ErrGatewayUnavailable):
			w.log.Warn().Err(err).Msg("gateway unavailable, retrying next tick")
			return changed
		default:
			w.log.Error().Err(err).Str("refund_id", r.ID).Msg("refund reconcile failed")
		}
	}
	return changed
}
