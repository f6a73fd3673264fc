package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/sandpit"
	"pkt.systems/sandpit/httpapi"
	"pkt.systems/sandpit/internal/appconfig"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local sandbox backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := pslog.Ctx(cmd.Context())
			server, err := sandpit.NewServer(serverConfig(cfg), sandpit.ServerDeps{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)
			if err := server.Start(gctx); err != nil {
				return err
			}
			g.Go(server.Wait)
			g.Go(func() error {
				<-gctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
				return nil
			})
			logger.Info("sandbox backend listening", "addr", cfg.Server.Addr)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serverConfig(cfg appconfig.Config) sandpit.ServerConfig {
	return sandpit.ServerConfig{
		HTTP: httpapi.Config{
			Addr:           cfg.Server.Addr,
			GoBinary:       cfg.Server.GoBinary,
			WorkDir:        cfg.Server.WorkDir,
			ExecTimeout:    time.Duration(cfg.Server.ExecTimeoutSeconds) * time.Second,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		},
		SnippetBackend: cfg.Server.SnippetBackend,
		SnippetPath:    cfg.Server.SnippetPath,
	}
}
