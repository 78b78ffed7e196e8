package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scholardigest/internal/services/gmail"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize read-only Gmail access and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			oauthCfg, err := gmail.LoadOAuthConfig(cfg.Paths.CredentialsFile)
			if err != nil {
				return err
			}
			tok, err := gmail.Authorize(commandCtx(cmd), oauthCfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gmail.SaveToken(cfg.Paths.TokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nToken saved to %s\n", cfg.Paths.TokenFile)
			return nil
		},
	}
}
