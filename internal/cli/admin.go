package cli

import (
	"fmt"
	"strings"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/spf13/cobra"
)

func requireLocal(b *backend) error {
	if b.local == nil {
		return fmt.Errorf("command is only available with the %s backend", backendLocal)
	}
	return nil
}

func newConfirmCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the email address of a local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := requireLocal(b); err != nil {
				return err
			}

			redirect, err := b.local.ConfirmEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %s\n", email)
			if redirect != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Redirect: %s\n", redirect)
			}
			return nil
		},
	}

	cmd.Flags().String("email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newSetRoleCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set-role",
		Short:   "Change the profile role of a local account",
		Example: `  authsession set-role --user-id 2f1c... --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			raw, _ := cmd.Flags().GetString("role")

			role, ok := authsession.ParseRole(raw)
			if !ok {
				return fmt.Errorf("unknown role %q, expected one of: %s", raw, roleNames())
			}

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := requireLocal(b); err != nil {
				return err
			}

			if err := b.profiles.SetRole(cmd.Context(), userID, role); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Role of %s set to %s\n", userID, role)
			return nil
		},
	}

	cmd.Flags().String("user-id", "", "profile id")
	cmd.Flags().String("role", "", "new role, one of: "+roleNames())
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func roleNames() string {
	roles := authsession.GetAllRoles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return strings.Join(names, ", ")
}
