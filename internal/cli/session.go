package cli

import (
	"fmt"
	"io"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func printState(w io.Writer, state authsession.AuthState) {
	fmt.Fprintln(w, print.MaybePrettyJSON(authsession.NewStateView(state)))
}

func newStatusCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.mount(cmd.Context()); err != nil {
				return err
			}

			printState(cmd.OutOrStdout(), b.provider.State())
			return nil
		},
	}
}

func newSignInCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sign-in",
		Short:   "Sign in with email and password",
		Example: `  authsession sign-in --email user@example.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.mount(cmd.Context()); err != nil {
				return err
			}

			if err := b.provider.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}

			if err := b.provider.AwaitLookup(cmd.Context()); err != nil {
				return err
			}

			printState(cmd.OutOrStdout(), b.provider.State())
			return nil
		},
	}

	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newSignUpCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sign-up",
		Short:   "Register a new account",
		Example: `  authsession sign-up --email user@example.com --password secret --full-name "Ada Lovelace"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			fullName, _ := cmd.Flags().GetString("full-name")

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.mount(cmd.Context()); err != nil {
				return err
			}

			if err := b.provider.SignUp(cmd.Context(), email, password, fullName); err != nil {
				return err
			}

			if err := b.provider.AwaitLookup(cmd.Context()); err != nil {
				return err
			}

			state := b.provider.State()
			if !state.SignedIn() {
				fmt.Fprintf(cmd.OutOrStdout(), "Check %s for a confirmation link\n", email)
				if target := authsession.RedirectTarget(cfg.session); target != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "After confirming you will be sent to %s\n", target)
				}
			}

			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}

	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("full-name", "", "display name stored as profile metadata")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("full-name")

	return cmd
}

func newSignOutCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "Sign out and discard local credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.mount(cmd.Context()); err != nil {
				return err
			}

			b.provider.SignOut(cmd.Context())

			printState(cmd.OutOrStdout(), b.provider.State())
			return nil
		},
	}
}
