package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trustlabel/internal/auth"
	"trustlabel/internal/queue"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for the daemon API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.AuthSecret) == "" {
				return fmt.Errorf("auth_secret is not set in the configuration")
			}
			parsedRole, ok := queue.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.Sign(cfg.Paths.AuthSecret, auth.Identity{
				UserID: strings.TrimSpace(args[0]),
				Role:   parsedRole,
			}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(queue.RoleConsumer), "Role claim (ADMIN, BRAND, CONSUMER)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default 24h)")

	return cmd
}
