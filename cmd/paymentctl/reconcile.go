package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/coursepay/internal/app"
)

func reconcileCmd() *cobra.Command {
	var (
		minAge time.Duration
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh pending payments from Paymob once",
		Long: `Runs one pass of the pending-payment sweeper: every pending payment inside
the age window is checked against Paymob and moved to completed or failed
when the gateway has a final answer.

Examples:
  paymentctl reconcile
  paymentctl reconcile --min-age 0 --max-age 72h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("min-age") {
				cfg.ReconcileMinAge = minAge
			}
			if cmd.Flags().Changed("max-age") {
				cfg.ReconcileMaxAge = maxAge
			}

			components, err := app.Wire(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			stats, err := components.Sweeper.SweepOnce(cmd.Context())
			components.Reconciler.Wait()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "checked %d, completed %d, failed %d, errors %d\n",
				stats.Checked, stats.Completed, stats.Failed, stats.Errors)
			return nil
		},
	}

	cmd.Flags().DurationVar(&minAge, "min-age", time.Minute, "skip payments younger than this")
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "skip payments older than this")

	return cmd
}
