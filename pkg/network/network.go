// Package network ties a built graph to its spatial index, cache and
// feature store, and keeps the current network swappable at runtime.
package network

import (
	"context"
	"log/slog"
	"time"

	"github.com/azybler/roadnet/pkg/cache"
	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/routing"
	"github.com/azybler/roadnet/pkg/source"
	"github.com/azybler/roadnet/pkg/spatial"
)

// Network is an immutable snapshot of a routable layer.
type Network struct {
	Layer string
	Graph *graph.Graph
	// Index is nil after a cache load until RebuildIndex is called; queries
	// still work without it but scan every node.
	Index *spatial.Grid
	// Features resolves edge geometry; nil when the source cannot look
	// features up by id.
	Features    source.FeatureLookup
	Diagnostics *graph.Diagnostics
	FromCache   bool
	LoadedAt    time.Time
}

// Stats summarizes a network for reporting.
type Stats struct {
	Layer      string    `json:"layer"`
	CRS        string    `json:"crs"`
	Tolerance  float64   `json:"merge_tolerance"`
	Nodes      uint32    `json:"nodes"`
	Edges      uint32    `json:"edges"`
	Components int       `json:"components"`
	Largest    uint32    `json:"largest_component"`
	Indexed    bool      `json:"indexed"`
	FromCache  bool      `json:"from_cache"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Build builds a network from src, indexes it and saves it to store.
// store may be nil. Diagnostics are returned even when the build fails.
func Build(ctx context.Context, src source.LineSource, store cache.Store, opts ...graph.BuildOption) (*Network, *graph.Diagnostics, error) {
	g, diag, err := graph.Build(ctx, src, opts...)
	if err != nil {
		return nil, diag, err
	}

	n := &Network{
		Layer:       src.Name(),
		Graph:       g,
		Features:    lookupOf(src),
		Diagnostics: diag,
		LoadedAt:    time.Now(),
	}
	n.RebuildIndex()
	diag.Addf("spatial index: %d nodes, cell size %g", n.Index.Len(), n.Index.CellSize())

	if store != nil {
		key := cacheKey(src.Name(), opts)
		if store.Save(key, g) {
			diag.Addf("cache saved as %s", key)
		} else {
			diag.Addf("cache not saved")
		}
	}
	return n, diag, nil
}

// Load restores the network of src from store. The spatial index is not
// rebuilt. A cached graph built with a different merge tolerance than
// tolerance (zero means the CRS default) is treated as a miss. Bounds among
// opts select the entry of that bounded build.
func Load(src source.LineSource, store cache.Store, tolerance float64, logger *slog.Logger, opts ...graph.BuildOption) (*Network, bool) {
	if store == nil || src == nil {
		return nil, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	key := cacheKey(src.Name(), opts)
	g, ok := store.Load(key)
	if !ok {
		return nil, false
	}

	crs := src.CRS()
	if tolerance <= 0 {
		tolerance = crs.MergeTolerance()
	}
	if g.Tolerance != tolerance {
		logger.Info("cached network has a different merge tolerance, ignoring",
			"key", key, "cached", g.Tolerance, "want", tolerance)
		return nil, false
	}
	g.CRS = crs

	diag := &graph.Diagnostics{}
	diag.Stats.Nodes = g.NumNodes
	diag.Stats.Edges = g.NumEdges
	diag.Addf("loaded %s from cache: %d nodes, %d directed edges", key, g.NumNodes, g.NumEdges)

	return &Network{
		Layer:       src.Name(),
		Graph:       g,
		Features:    lookupOf(src),
		Diagnostics: diag,
		FromCache:   true,
		LoadedAt:    time.Now(),
	}, true
}

// LoadOrBuild restores the network from store when possible, rebuilding the
// spatial index, and builds it from src otherwise.
func LoadOrBuild(ctx context.Context, src source.LineSource, store cache.Store, tolerance float64, logger *slog.Logger, opts ...graph.BuildOption) (*Network, *graph.Diagnostics, error) {
	if n, ok := Load(src, store, tolerance, logger, opts...); ok {
		n.RebuildIndex()
		n.Diagnostics.Addf("spatial index rebuilt: %d nodes", n.Index.Len())
		return n, n.Diagnostics, nil
	}
	if tolerance > 0 {
		opts = append([]graph.BuildOption{graph.WithTolerance(tolerance)}, opts...)
	}
	if logger != nil {
		opts = append([]graph.BuildOption{graph.WithLogger(logger)}, opts...)
	}
	return Build(ctx, src, store, opts...)
}

// RebuildIndex rebuilds the spatial index from the graph.
func (n *Network) RebuildIndex() {
	n.Index = spatial.NewGridForCRS(n.Graph)
}

// Engine returns a routing engine over the network.
func (n *Network) Engine(opts ...routing.Option) *routing.Engine {
	return routing.NewEngine(n.Graph, n.Index, n.Features, opts...)
}

// Stats reports the network's size and provenance.
func (n *Network) Stats() Stats {
	g := n.Graph
	crs := geo.CRS{}
	var tol float64
	if g != nil {
		crs, tol = g.CRS, g.Tolerance
	}
	comps := graph.FindComponents(g)
	_, largest, _ := comps.Largest()
	s := Stats{
		Layer:      n.Layer,
		CRS:        crs.String(),
		Tolerance:  tol,
		Components: comps.Count(),
		Largest:    largest,
		Indexed:    n.Index.Len() > 0,
		FromCache:  n.FromCache,
		LoadedAt:   n.LoadedAt,
	}
	if g != nil {
		s.Nodes, s.Edges = g.NumNodes, g.NumEdges
	}
	return s
}

// cacheKey keys a build of layer by the bounds in opts, if any.
func cacheKey(layer string, opts []graph.BuildOption) string {
	if b := graph.BoundsOf(opts...); b != nil {
		return cache.BoundedKey(layer, *b)
	}
	return cache.Key(layer)
}

func lookupOf(src source.LineSource) source.FeatureLookup {
	if l, ok := src.(source.FeatureLookup); ok {
		return l
	}
	return nil
}
