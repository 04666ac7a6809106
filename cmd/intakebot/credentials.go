package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Stagnxzione/ra-userbot/internal/auth"
	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage webhook bearer tokens",
	}

	var caller string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a WebApp backend",
		Long: `Signs a JWT with AUTH_JWT_SECRET for calling POST /api/from_webapp.
The token expires after AUTH_TOKEN_TTL_MINUTES.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runTokenIssue(cmd.OutOrStdout(), cfg.Auth, caller)
		},
	}
	issue.Flags().StringVar(&caller, "caller", "webapp", "name of the integration the token is issued to")
	cmd.AddCommand(issue)
	return cmd
}

func runTokenIssue(out io.Writer, cfg config.AuthConfig, caller string) error {
	if cfg.JWTSecret == "" {
		return util.NewConfigMissing("AUTH_JWT_SECRET is required to issue tokens")
	}
	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTLMinutes)
	token, exp, err := tm.GenerateToken(caller)
	if err != nil {
		return fmt.Errorf("token issue: %w", err)
	}
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
	return nil
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the webhook API key",
	}

	var cost int
	hash := &cobra.Command{
		Use:   "hash [key]",
		Short: "Hash an API key for WEBHOOK_API_KEY_HASH",
		Long:  "Prints the bcrypt hash of the key. The key is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("apikey hash: read stdin: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			hashed, err := auth.HashAPIKey(key, cost)
			if err != nil {
				return fmt.Errorf("apikey hash: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
	hash.Flags().IntVar(&cost, "cost", 12, "bcrypt cost")
	cmd.AddCommand(hash)
	return cmd
}
