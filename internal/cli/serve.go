package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session state and actions over HTTP",
		Long: `serve mounts a session provider and exposes it as JSON routes:

  GET  /session            current state
  POST /session/sign-in    {"email", "password"}
  POST /session/sign-up    {"email", "password", "full_name"}
  POST /session/sign-out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.mount(ctx); err != nil {
				return err
			}

			srv := newServer(b)

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- srv.Serve(cfg.Addr)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.Addr)

			// Serve may return nil right away when the adapter listens in
			// the background, so only a non nil error stops the command.
			for done := false; !done; {
				select {
				case err := <-serveErr:
					if err != nil {
						return fmt.Errorf("serve %s: %w", cfg.Addr, err)
					}
					serveErr = nil
				case <-ctx.Done():
					done = true
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8572)")

	return cmd
}

func newServer(b *backend) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: true,
		}))
	})

	srv.Router().Use(authsession.ProviderMiddleware(b.provider))

	authsession.NewSessionController(b.provider,
		authsession.WithControllerLogger(b.logger),
	).RegisterRoutes(srv.Router())

	return srv
}
