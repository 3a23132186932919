package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/utils"
)

func tokenCmd() *cobra.Command {
	var (
		email string
		name  string
		phone string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Mint a bearer token signed with JWT_SECRET for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			cfg := config.Load()
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set")
			}

			token, err := utils.GenerateToken(cfg.JWTSecret, utils.Identity{
				UserID:   userID,
				Email:    email,
				FullName: name,
				Phone:    phone,
			}, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "user_metadata.full_name claim")
	cmd.Flags().StringVar(&phone, "phone", "", "user_metadata.phone claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
