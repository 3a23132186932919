package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/poller"
)

func watchCmd() *cobra.Command {
	var (
		apiURL   string
		token    string
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [payment-id]",
		Short: "Poll a payment until it completes, fails or times out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %w", err)
			}
			if token == "" {
				token = os.Getenv("COURSEPAY_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("--token or COURSEPAY_TOKEN is required")
			}

			logger, err := logging.New("info", "console")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p := &poller.Poller{
				Interval: interval,
				Timeout:  timeout,
				Checker:  poller.NewHTTPChecker(apiURL, token),
				Log:      logger,
			}

			fmt.Fprintf(cmd.OutOrStdout(), "waiting for payment %s...\n", paymentID)
			result := p.Start(ctx, paymentID).Result()

			switch result.Outcome {
			case poller.OutcomeCompleted:
				fmt.Fprintln(cmd.OutOrStdout(), "payment completed, course unlocked")
				return nil
			case poller.OutcomeFailed:
				return fmt.Errorf("payment failed")
			case poller.OutcomeTimeout:
				return fmt.Errorf("payment verification timed out after %s; status is still %s", timeout, result.Status)
			default:
				return context.Canceled
			}
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token of the payment owner")
	cfg := config.Load()
	cmd.Flags().DurationVar(&interval, "interval", cfg.PollInterval, "poll interval (POLL_INTERVAL_SECONDS)")
	cmd.Flags().DurationVar(&timeout, "timeout", cfg.PollTimeout, "give up after this long (POLL_TIMEOUT_MINUTES)")

	return cmd
}
