package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"exam-editor/internal/auth"
	"exam-editor/internal/config"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with bearer tokens",
	}
	cmd.AddCommand(tokenInspectCmd())
	return cmd
}

func tokenInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a bearer token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth jwt secret is not configured")
			}

			issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			claims, err := issuer.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}

			out := map[string]any{
				"id":    claims.ID,
				"email": claims.Email,
				"role":  claims.Role,
				"ttl":   issuer.TTL().String(),
			}
			if claims.ExpiresAt != nil {
				out["expiresAt"] = claims.ExpiresAt.Time.Format(time.RFC3339)
				out["expiresIn"] = time.Until(claims.ExpiresAt.Time).Round(time.Second).String()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
