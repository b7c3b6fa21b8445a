package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Settings come from AUTH_SESSION_*
// environment variables; flags override them.
func NewRootCmd() *cobra.Command {
	cfg := &Config{}

	rootCmd := &cobra.Command{
		Use:   "authsession",
		Short: "Inspect and drive an authentication session",
		Long: `authsession mirrors an identity provider session into a local state
(user, session, loading and admin flags) and exposes the sign in, sign up and
sign out actions.

Two identity backends are supported:
  local   in-process users stored in a SQLite database (default)
  gotrue  a hosted GoTrue compatible auth server and its PostgREST profiles table`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlags(cmd, loaded)
			*cfg = *loaded
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("backend", "", "identity backend: local or gotrue")
	flags.String("dsn", "", "SQLite DSN for the local backend")
	flags.String("signing-key", "", "token signing key for the local backend")
	flags.Bool("auto-confirm", false, "sign new local users in without email confirmation")
	flags.String("gotrue-url", "", "base url of the GoTrue compatible auth server")
	flags.String("anon-key", "", "anon api key sent to the auth server")
	flags.String("session-file", "", "where the gotrue session is kept between runs (default <user config dir>/authsession/session.json)")
	flags.String("site-url", "", "application origin used as the sign up redirect target")
	flags.Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newStatusCmd(cfg),
		newSignInCmd(cfg),
		newSignUpCmd(cfg),
		newSignOutCmd(cfg),
		newConfirmCmd(cfg),
		newSetRoleCmd(cfg),
		newServeCmd(cfg),
	)

	return rootCmd
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("dsn") {
		cfg.DSN, _ = flags.GetString("dsn")
	}
	if flags.Changed("signing-key") {
		cfg.SigningKey, _ = flags.GetString("signing-key")
	}
	if flags.Changed("auto-confirm") {
		cfg.AutoConfirm, _ = flags.GetBool("auto-confirm")
	}
	if flags.Changed("gotrue-url") {
		cfg.GoTrueURL, _ = flags.GetString("gotrue-url")
	}
	if flags.Changed("anon-key") {
		cfg.AnonKey, _ = flags.GetString("anon-key")
	}
	if flags.Changed("session-file") {
		cfg.SessionFile, _ = flags.GetString("session-file")
	}
	if flags.Changed("site-url") {
		cfg.session.SiteURL, _ = flags.GetString("site-url")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
}
