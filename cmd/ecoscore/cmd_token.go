package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/ecoscore/internal/auth"
)

func newTokenCommand(c *cli) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user with the configured secret",
		Long: `Issue an HS256 bearer token whose subject is --user. The worker accepts
it when started with the same ECOSCORE_JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			verifier := auth.NewVerifier(auth.Config{Secret: c.cfg.JWTSecret, Issuer: c.cfg.JWTIssuer})
			token, err := verifier.Issue(userID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to embed as the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
