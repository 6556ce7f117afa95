// Command roadnet builds, caches and serves routable networks made from
// line layers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/cache"
	"github.com/azybler/roadnet/pkg/config"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/source"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	sourcePath string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "roadnet",
		Short:        "Build, cache and route over line-based road networks",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.sourcePath != "" {
				cfg.Source.Path = a.sourcePath
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.sourcePath, "source", "", "line source file (.geojson or .osm.pbf), overrides source.path")

	root.AddCommand(
		a.buildCmd(),
		a.statsCmd(),
		a.routeCmd(),
		a.serveCmd(),
	)
	return root
}

// openSource opens the configured line layer.
func (a *app) openSource(ctx context.Context) (source.LineSource, error) {
	if a.cfg.Source.Path == "" {
		return nil, errors.New("no line source: set source.path or pass --source")
	}
	opts := source.OpenOptions{
		Name:   a.cfg.Source.Layer,
		CRS:    a.cfg.SourceCRS(),
		Logger: a.logger,
	}
	if b := a.cfg.Bounds(); b != nil {
		opts.BBox = *b
	}
	mem, err := source.Open(ctx, a.cfg.Source.Path, opts)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// openStore opens the configured cache backend. The returned func releases it.
func (a *app) openStore() (cache.Store, func(), error) {
	switch a.cfg.Cache.Backend {
	case config.CacheNone:
		return cache.Nop{}, func() {}, nil
	case config.CacheBadger:
		s, err := cache.OpenBadger(cache.BadgerConfig{Path: a.cfg.Cache.Dir, Logger: a.logger})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				a.logger.Warn("closing cache", "error", err)
			}
		}, nil
	}
	return cache.NewFileStore(a.cfg.Cache.Dir, a.logger), func() {}, nil
}

func (a *app) buildOptions() []graph.BuildOption {
	opts := []graph.BuildOption{graph.WithLogger(a.logger)}
	if a.cfg.Build.Tolerance > 0 {
		opts = append(opts, graph.WithTolerance(a.cfg.Build.Tolerance))
	}
	if b := a.cfg.Bounds(); b != nil {
		opts = append(opts, graph.WithBounds(*b))
	}
	return opts
}

// loadNetwork restores the layer from the cache or builds it.
func (a *app) loadNetwork(ctx context.Context) (*network.Network, func(), error) {
	src, err := a.openSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, release, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	n, _, err := network.LoadOrBuild(ctx, src, store, a.cfg.Build.Tolerance, a.logger, a.buildOptions()...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return n, release, nil
}
