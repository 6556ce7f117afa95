package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/azybler/roadnet/pkg/cache"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/routing"
	"github.com/azybler/roadnet/pkg/source"
)

// ErrNotReady is returned by queries before the first network is loaded.
var ErrNotReady = errors.New("network not loaded")

// OpenFunc opens the line source of the managed layer.
type OpenFunc func(ctx context.Context) (source.LineSource, error)

// Config configures a Manager.
type Config struct {
	Open  OpenFunc
	Store cache.Store // nil disables caching
	// Tolerance overrides the CRS merge tolerance when positive.
	Tolerance float64
	// Bounds restricts builds when non-nil.
	Bounds        *orb.Bound
	EngineOptions []routing.Option
	Logger        *slog.Logger
}

// snapshot pairs a network with the engine serving it.
type snapshot struct {
	net    *Network
	engine *routing.Engine
}

// Manager owns the current network. Loads and rebuilds produce a new
// Network that is swapped in atomically; queries in flight keep using the
// snapshot they started with. Concurrent rebuild requests share one build.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
	flight  singleflight.Group
}

// NewManager creates a manager. Call Load before serving queries.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = cache.Nop{}
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Current returns the current network, or nil before the first load.
func (m *Manager) Current() *Network {
	if s := m.current.Load(); s != nil {
		return s.net
	}
	return nil
}

// Load installs a network, preferring the cache.
func (m *Manager) Load(ctx context.Context) (*Network, error) {
	return m.do(ctx, true)
}

// Rebuild builds the network from its source, bypassing the cache, and
// swaps it in. On failure the current network stays in place.
func (m *Manager) Rebuild(ctx context.Context) (*Network, error) {
	return m.do(ctx, false)
}

func (m *Manager) do(ctx context.Context, useCache bool) (*Network, error) {
	key := "rebuild"
	if useCache {
		key = "load"
	}
	v, err, shared := m.flight.Do(key, func() (any, error) {
		return m.load(ctx, useCache)
	})
	if shared {
		m.logger.Debug("joined in-flight network load", "kind", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Network), nil
}

func (m *Manager) load(ctx context.Context, useCache bool) (n *Network, err error) {
	ctx, span := tracer.Start(ctx, "network.Load")
	defer span.End()
	start := time.Now()
	origin := "build"

	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("network load panic: %v", r)
		}
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.logger.Error("network load failed", "origin", origin, "error", err)
		}
		loadsTotal.WithLabelValues(origin, result).Inc()
		loadDuration.WithLabelValues(origin).Observe(time.Since(start).Seconds())
	}()

	if m.cfg.Open == nil {
		return nil, graph.ErrNoSource
	}
	src, err := m.cfg.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	var store cache.Store = cache.Nop{}
	if useCache {
		store = m.cfg.Store
	}
	opts := []graph.BuildOption{graph.WithLogger(m.logger)}
	if m.cfg.Tolerance > 0 {
		opts = append(opts, graph.WithTolerance(m.cfg.Tolerance))
	}
	if m.cfg.Bounds != nil {
		opts = append(opts, graph.WithBounds(*m.cfg.Bounds))
	}
	if loaded, ok := Load(src, store, m.cfg.Tolerance, m.logger, opts...); ok {
		origin = "cache"
		loaded.RebuildIndex()
		n = loaded
	} else {
		n, _, err = Build(ctx, src, m.cfg.Store, opts...)
		if err != nil {
			return nil, err
		}
	}

	m.swap(n)
	span.SetAttributes(
		attribute.String("layer", n.Layer),
		attribute.String("origin", origin),
		attribute.Int64("nodes", int64(n.Graph.NumNodes)),
	)
	span.SetStatus(codes.Ok, "")
	m.logger.Info("network ready",
		"layer", n.Layer,
		"origin", origin,
		"nodes", n.Graph.NumNodes,
		"edges", n.Graph.NumEdges,
		"elapsed", time.Since(start))
	return n, nil
}

func (m *Manager) swap(n *Network) {
	m.current.Store(&snapshot{net: n, engine: n.Engine(m.cfg.EngineOptions...)})
	networkNodes.Set(float64(n.Graph.NumNodes))
	networkEdges.Set(float64(n.Graph.NumEdges))
}

func (m *Manager) engine() (*routing.Engine, error) {
	s := m.current.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s.engine, nil
}

// ShortestPath implements routing.Router on the current network.
func (m *Manager) ShortestPath(ctx context.Context, start, end routing.Point) (*routing.Result, error) {
	e, err := m.engine()
	if err != nil {
		return nil, err
	}
	return e.ShortestPath(ctx, start, end)
}

// ShortestPathChain implements routing.Router on the current network.
func (m *Manager) ShortestPathChain(ctx context.Context, points []routing.Point) (*routing.Result, error) {
	e, err := m.engine()
	if err != nil {
		return nil, err
	}
	return e.ShortestPathChain(ctx, points)
}

// Watch rebuilds the network whenever the file at path is written,
// created or renamed into place. Events within debounce of each other
// trigger a single rebuild. Watching stops when ctx is done.
func (m *Manager) Watch(ctx context.Context, path string, debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and atomic writers replace the file.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	m.logger.Info("watching source", "path", abs, "debounce", debounce)

	go func() {
		defer w.Close()
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				m.logger.Debug("source changed", "path", abs, "op", ev.Op.String())
				fire = time.After(debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.logger.Warn("source watcher error", "error", err)
			case <-fire:
				fire = nil
				if _, err := m.Rebuild(ctx); err != nil {
					m.logger.Warn("rebuild after source change failed, keeping current network", "error", err)
				}
			}
		}
	}()
	return nil
}
