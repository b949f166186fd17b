package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spboyer/staffeval/internal/webapi"
	"github.com/spboyer/staffeval/internal/webserver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Phase endpoints stream their progress as server-sent events:

  POST /api/sessions/{id}/test
  POST /api/sessions/{id}/steps/{index}/deep-analysis
  POST /api/sessions/{id}/verdict

When the environment variable named by server.auth_token_env is set, every
route except /api/health requires "Authorization: Bearer <token>".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			webapi.Version = version
			srv, err := webserver.New(webserver.Config{
				Addr:           addr,
				Service:        a.svc,
				AuthToken:      a.cfg.AuthToken(),
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}
			if a.cfg.AuthToken() == "" {
				slog.Warn("bearer authentication disabled", "env", a.cfg.Server.AuthTokenEnv)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "staffeval API listening on http://%s\n", addr) //nolint:errcheck

			return serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides server.addr)")
	return cmd
}

// serve runs srv until SIGINT/SIGTERM or a server failure.
func serve(parent context.Context, srv *webserver.Server) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown requested")
		return nil
	})
	return g.Wait()
}
