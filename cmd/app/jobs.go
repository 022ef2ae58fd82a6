package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/infra/sched"
)

func lifecycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lifecycle",
		Short: "Run one subscription lifecycle pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := sched.NewLifecycleWorker(a.life, a.locker(), a.cfg.Lifecycle, a.log)
			if err != nil {
				return err
			}
			report, err := w.RunOnce(ctx)
			if errors.Is(err, domain.ErrLockNotAcquired) {
				fmt.Fprintln(cmd.OutOrStdout(), "another instance is running the lifecycle; skipped")
				return nil
			}
			out, _ := json.MarshalIndent(report, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func reconcileCmd() *cobra.Command {
	var staleAfter time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Pull gateway status for stale refunds once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Reconciler
			if staleAfter > 0 {
				cfg.StaleAfter = staleAfter
			}
			n := sched.NewRefundReconciler(a.refunds, cfg, a.log).Tick(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d refund(s) changed status\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "override reconciler.stale_after")
	return cmd
}
