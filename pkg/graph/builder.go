package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/source"
)

var (
	// ErrNoSource is returned when Build is called without a source.
	ErrNoSource = errors.New("no line source")
	// ErrEmptySource is returned when the source yields no usable segments.
	ErrEmptySource = errors.New("line source is empty")
)

// maxDiagnosticFailures caps per-feature failure lines in Diagnostics.
const maxDiagnosticFailures = 100

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	tolerance float64
	bound     *orb.Bound
	logger    *slog.Logger
}

// WithTolerance overrides the merge tolerance derived from the source CRS.
func WithTolerance(tol float64) BuildOption {
	return func(o *buildOptions) { o.tolerance = tol }
}

// WithBounds restricts the build to features whose bounding box intersects b.
func WithBounds(b orb.Bound) BuildOption {
	return func(o *buildOptions) { o.bound = &b }
}

// BoundsOf returns the bounds opts restrict a build to, or nil.
func BoundsOf(opts ...BuildOption) *orb.Bound {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.bound
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// snapKey is an endpoint quantized to the merge tolerance.
type snapKey struct {
	qx, qy int64
}

// snapper deduplicates segment endpoints into dense node ids.
type snapper struct {
	tol   float64
	ids   map[snapKey]uint32
	nodes []Node
}

func newSnapper(tol float64) *snapper {
	return &snapper{tol: tol, ids: make(map[snapKey]uint32)}
}

func (s *snapper) key(p orb.Point) snapKey {
	return snapKey{
		qx: int64(math.Round(p[0] / s.tol)),
		qy: int64(math.Round(p[1] / s.tol)),
	}
}

// resolve returns the node id for p, creating the node on first sight.
// The node keeps the coordinates of the first endpoint that created it.
func (s *snapper) resolve(p orb.Point) uint32 {
	k := s.key(p)
	if id, ok := s.ids[k]; ok {
		return id
	}
	id := uint32(len(s.nodes))
	s.ids[k] = id
	s.nodes = append(s.nodes, Node{ID: id, X: p[0], Y: p[1]})
	return id
}

// halfEdge is an edge tagged with its source node, before CSR placement.
type halfEdge struct {
	from uint32
	Edge
}

// Build planarizes every feature of src into atomic segments, snaps segment
// endpoints into nodes and assembles an undirected CSR graph. Diagnostics are
// returned even when the build fails.
//
// A feature that cannot be planarized is logged and skipped; an error from
// the source enumeration itself aborts the build.
func Build(ctx context.Context, src source.LineSource, opts ...BuildOption) (*Graph, *Diagnostics, error) {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	diag := &Diagnostics{}
	start := time.Now()

	if src == nil {
		diag.Addf("build aborted: no source")
		return nil, diag, ErrNoSource
	}

	crs := src.CRS()
	tol := o.tolerance
	if tol <= 0 {
		tol = crs.MergeTolerance()
	}
	diag.Addf("layer %q, crs %s, merge tolerance %g", src.Name(), crs, tol)

	snap := newSnapper(tol)
	var edges []halfEdge
	stats := &diag.Stats

	visit := func(f source.Feature) error {
		stats.Features++
		segs, err := geo.Segments(f.Geometry)
		if err != nil {
			stats.FailedFeatures++
			o.logger.Warn("skipping feature", "layer", src.Name(), "feature", f.ID, "error", err)
			if stats.FailedFeatures <= maxDiagnosticFailures {
				diag.Addf("feature %d skipped: %v", f.ID, err)
			}
			return nil
		}
		for i, seg := range segs {
			stats.Segments++
			u := snap.resolve(seg.A)
			v := snap.resolve(seg.B)
			if u == v {
				stats.SelfLoops++
				continue
			}
			ref := EdgeRef{FeatureID: f.ID, Segment: int32(i)}
			w := seg.Length()
			edges = append(edges,
				halfEdge{from: u, Edge: Edge{Target: v, Weight: w, Ref: ref}},
				halfEdge{from: v, Edge: Edge{Target: u, Weight: w, Ref: ref}},
			)
		}
		return nil
	}

	var err error
	if o.bound != nil {
		diag.Addf("restricted to bounds %v - %v", o.bound.Min, o.bound.Max)
		err = featuresIn(ctx, src, *o.bound, visit)
	} else {
		err = src.Features(ctx, visit)
	}
	if err != nil {
		diag.Addf("build aborted: %v", err)
		return nil, diag, fmt.Errorf("enumerate features: %w", err)
	}

	diag.Addf("features: %d (%d skipped), segments: %d, self-loops dropped: %d",
		stats.Features, stats.FailedFeatures, stats.Segments, stats.SelfLoops)

	if len(edges) == 0 {
		diag.Addf("build aborted: no usable segments")
		return nil, diag, ErrEmptySource
	}

	g := assemble(tol, snap.nodes, edges)
	g.CRS = crs

	stats.Nodes = g.NumNodes
	stats.Edges = g.NumEdges
	comps := FindComponents(g)
	stats.Components = comps.Count()
	_, stats.LargestComponent, _ = comps.Largest()
	stats.Elapsed = time.Since(start)
	diag.Addf("graph: %d nodes, %d directed edges, %d connected components (largest %d nodes)",
		g.NumNodes, g.NumEdges, stats.Components, stats.LargestComponent)
	diag.Addf("built in %s", stats.Elapsed.Round(time.Millisecond))

	o.logger.Info("network built",
		"layer", src.Name(),
		"nodes", g.NumNodes,
		"edges", g.NumEdges,
		"components", stats.Components,
		"skipped_features", stats.FailedFeatures,
		"elapsed", stats.Elapsed)

	return g, diag, nil
}

// featuresIn enumerates features intersecting b, using the source's own
// spatial index when it has one.
func featuresIn(ctx context.Context, src source.LineSource, b orb.Bound, fn func(source.Feature) error) error {
	if bs, ok := src.(source.BoundedSource); ok {
		return bs.FeaturesIn(ctx, b, fn)
	}
	return src.Features(ctx, func(f source.Feature) error {
		if f.Geometry == nil || !b.Intersects(f.Geometry.Bound()) {
			return nil
		}
		return fn(f)
	})
}

// assemble places half-edges into CSR order. Edges of a node keep their
// insertion order, so identical input yields an identical graph.
func assemble(tol float64, nodes []Node, edges []halfEdge) *Graph {
	numNodes := uint32(len(nodes))
	numEdges := uint32(len(edges))

	firstOut := make([]uint32, numNodes+1)
	for _, e := range edges {
		firstOut[e.from+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)
	feature := make([]int32, numEdges)
	segment := make([]int32, numEdges)

	pos := make([]uint32, numNodes)
	copy(pos, firstOut[:numNodes])
	for _, e := range edges {
		idx := pos[e.from]
		head[idx] = e.Target
		weight[idx] = e.Weight
		feature[idx] = e.Ref.FeatureID
		segment[idx] = e.Ref.Segment
		pos[e.from]++
	}

	x := make([]float64, numNodes)
	y := make([]float64, numNodes)
	for i, n := range nodes {
		x[i], y[i] = n.X, n.Y
	}

	return &Graph{
		NumNodes:  numNodes,
		NumEdges:  numEdges,
		FirstOut:  firstOut,
		Head:      head,
		Weight:    weight,
		Feature:   feature,
		Segment:   segment,
		X:         x,
		Y:         y,
		Tolerance: tol,
	}
}
