package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/plugins/botvac"
)

// newLoginCmd logs in with the configured account and stores the session
// token so the daemon can start without a password round trip.
func newLoginCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Neato account and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Botvac == nil {
				return fmt.Errorf("config has no botvac section")
			}
			botvacCfg, err := botvac.ConfigFrom(cfg.Botvac)
			if err != nil {
				return err
			}
			if botvacCfg.TokenType != botvac.TokenSession {
				return fmt.Errorf("login only applies to session tokens, config uses %s", botvacCfg.TokenType)
			}
			if botvacCfg.Password == "" {
				return fmt.Errorf("botvac password_file is required to log in")
			}

			ctx := cmd.Context()
			client, err := botvac.NewClientFromConfig(ctx, botvacCfg)
			if err != nil {
				return err
			}
			if !force {
				if ok, err := client.RestoreCredential(ctx); err == nil && ok {
					fmt.Fprintln(cmd.OutOrStdout(), "session already stored; use --force to log in again")
					return nil
				}
			}
			if err := client.Authenticate(ctx, botvacCfg.Email, botvacCfg.Password, true); err != nil {
				return err
			}

			fleet, err := client.Robots(ctx)
			if err != nil {
				return fmt.Errorf("logged in, but listing robots failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, %d robot(s)\n", botvacCfg.Email, len(fleet.Robots))
			for _, robot := range fleet.Robots {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", robot.Name(), robot.Serial())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "log in even when a session is stored")
	return cmd
}
