package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"billing-reconciler/internal/domain/model"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample service catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			existing, err := a.catalog.List(ctx)
			if err != nil {
				return fmt.Errorf("list services: %w", err)
			}
			if len(existing) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d services already present. No changes.\n", len(existing))
				for _, s := range existing {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s (days=%d, grace=%d, price=%d %s)\n", s.ID, s.DurationDays, s.GraceDays, s.PriceMinor, s.Currency)
				}
				return nil
			}

			seed := []model.ServiceConfig{
				{ID: "starter-monthly", Name: "Starter", PriceMinor: 19900, Currency: "INR", DurationDays: 30, GraceDays: 3, Active: true},
				{ID: "pro-monthly", Name: "Pro", PriceMinor: 49900, Currency: "INR", DurationDays: 30, GraceDays: 7, Active: true},
				{ID: "pro-yearly", Name: "Pro (yearly)", PriceMinor: 499900, Currency: "INR", DurationDays: 365, GraceDays: 14, Active: true},
			}
			for i := range seed {
				s := seed[i]
				if _, err := a.catalog.Upsert(ctx, &s, "seed"); err != nil {
					return fmt.Errorf("create service %q: %w", s.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded: %s (days=%d, price=%d %s)\n", s.ID, s.DurationDays, s.PriceMinor, s.Currency)
			}
			return nil
		},
	}
}
