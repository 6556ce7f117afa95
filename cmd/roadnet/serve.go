package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/api"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/source"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve route queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			store, release, err := a.openStore()
			if err != nil {
				return err
			}
			defer release()

			m := network.NewManager(network.Config{
				Open:          func(ctx context.Context) (source.LineSource, error) { return a.openSource(ctx) },
				Store:         store,
				Tolerance:     a.cfg.Build.Tolerance,
				Bounds:        a.cfg.Bounds(),
				EngineOptions: a.cfg.RoutingOptions(a.logger),
				Logger:        a.logger,
			})
			if _, err := m.Load(ctx); err != nil {
				return err
			}
			if a.cfg.Source.Watch {
				if err := m.Watch(ctx, a.cfg.Source.Path, a.cfg.Source.Debounce); err != nil {
					return err
				}
			}

			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			cfg := api.DefaultConfig(sc.Addr)
			cfg.ReadTimeout = sc.ReadTimeout
			cfg.WriteTimeout = sc.WriteTimeout
			cfg.CORSOrigin = sc.CORSOrigin
			if sc.RequestTimeout > 0 {
				cfg.RequestTimeout = sc.RequestTimeout
			}
			if sc.MaxConcurrent > 0 {
				cfg.MaxConcurrent = sc.MaxConcurrent
			}

			gin.SetMode(gin.ReleaseMode)
			srv := api.NewServer(cfg, api.NewHandlers(m, m, a.logger), a.logger)
			return api.ListenAndServe(ctx, srv, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
