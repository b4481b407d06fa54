package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voocel/unillm"
	"github.com/voocel/unillm/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every provider behind an OpenAI-compatible API",
		Long: "Serve every provider behind an OpenAI-compatible API. Edits to the config " +
			"file are picked up without a restart.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := a.newClient(ctx, a.cfg)
			if err != nil {
				return err
			}

			serverCfg := a.cfg.Server
			if addr != "" {
				serverCfg.Addr = addr
			}
			srv, err := server.New(serverCfg, client, slog.Default())
			if err != nil {
				_ = client.Close()
				return err
			}

			watchConfig(a.v, func(cfg *unillm.Config) {
				a.reloadClient(ctx, srv, cfg)
			})

			err = srv.Run(ctx)
			_ = srv.Client().Close()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// reloadClient builds a client from a new config revision and swaps it in.
// A revision that fails to build leaves the running client in place. The
// listen address is fixed for the life of the process.
func (a *app) reloadClient(ctx context.Context, srv *server.Server, cfg *unillm.Config) {
	client, err := a.newClient(ctx, cfg)
	if err != nil {
		slog.Warn("keeping previous client", "error", err)
		return
	}
	if old := srv.SwapClient(client); old != nil {
		_ = old.Close()
	}
	slog.Info("client reloaded", "providers", len(cfg.Providers), "aliases", len(cfg.Aliases))
}
