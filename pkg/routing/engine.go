package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/source"
	"github.com/azybler/roadnet/pkg/spatial"
)

var (
	// ErrNoPath is returned when a point-to-point query cannot produce a
	// route. Both ErrNoCandidates and ErrDisconnected satisfy
	// errors.Is(err, ErrNoPath).
	ErrNoPath = errors.New("no path found")
	// ErrNoCandidates is returned when no network node is near a query point.
	ErrNoCandidates = fmt.Errorf("%w: no network node near point", ErrNoPath)
	// ErrDisconnected is returned when the search exhausts the start
	// candidates' component without reaching an end candidate.
	ErrDisconnected = fmt.Errorf("%w: points are not connected", ErrNoPath)
	// ErrTooFewPoints is returned by ShortestPathChain for fewer than two points.
	ErrTooFewPoints = errors.New("at least two points are required")
	// ErrUnknownNode is returned by NodePath for an out-of-range node id.
	ErrUnknownNode = errors.New("unknown node")
)

// Default candidate counts.
const (
	DefaultCandidateNodes = 50
	DefaultFallbackNodes  = 10
)

// Point is a query location. A zero CRS means "same as the network".
type Point struct {
	orb.Point
	CRS geo.CRS
}

// Pt returns an untagged point.
func Pt(x, y float64) Point {
	return Point{Point: orb.Point{x, y}}
}

// Result is a route: geometry pieces in traversal order, the sum of edge
// weights, and the sorted set of source feature ids it runs along.
type Result struct {
	Parts      []orb.LineString
	Length     float64
	FeatureIDs []int32
	// Nodes is the network node sequence; legs of a chained query are
	// concatenated.
	Nodes []uint32
	// Connectors counts straight-line pieces inserted for unroutable legs.
	Connectors int
	// Unresolved counts path edges whose geometry could not be recovered.
	Unresolved int
	// CRS is the coordinate system of Parts and Length: the network's.
	CRS geo.CRS
}

// Router answers route queries.
type Router interface {
	ShortestPath(ctx context.Context, start, end Point) (*Result, error)
	ShortestPathChain(ctx context.Context, points []Point) (*Result, error)
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	candidateNodes int
	fallbackNodes  int
	straightLine   bool
	logger         *slog.Logger
}

// WithCandidateNodes sets how many nearest nodes seed each side of a query
// before their one-hop neighbours are added.
func WithCandidateNodes(n int) Option {
	return func(o *options) { o.candidateNodes = n }
}

// WithFallbackNodes sets how many nearest nodes are used when the primary
// candidate search finds nothing.
func WithFallbackNodes(n int) Option {
	return func(o *options) { o.fallbackNodes = n }
}

// WithStraightLineFallback controls whether chained queries replace an
// unroutable leg with a straight connector. Enabled by default.
func WithStraightLineFallback(enabled bool) Option {
	return func(o *options) { o.straightLine = enabled }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Engine runs multi-candidate Dijkstra over a network graph. It is safe for
// concurrent queries.
type Engine struct {
	g        *graph.Graph
	index    *spatial.Grid
	resolver *Resolver
	opts     options
	states   sync.Pool
}

// NewEngine creates a routing engine. index may be nil, in which case
// nearest-node queries scan the whole graph. lookup supplies edge geometry
// for results; with a nil lookup results carry no geometry.
func NewEngine(g *graph.Graph, index *spatial.Grid, lookup source.FeatureLookup, opts ...Option) *Engine {
	o := options{
		candidateNodes: DefaultCandidateNodes,
		fallbackNodes:  DefaultFallbackNodes,
		straightLine:   true,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	e := &Engine{
		g:        g,
		index:    index,
		resolver: NewResolver(lookup, o.logger),
		opts:     o,
	}
	var n uint32
	if g != nil {
		n = g.NumNodes
	}
	e.states.New = func() any { return NewQueryState(n) }
	return e
}

// Graph returns the graph the engine searches.
func (e *Engine) Graph() *graph.Graph { return e.g }

// NearestNodes returns up to k node ids by ascending distance from p,
// scanning every node when there is no index.
func (e *Engine) NearestNodes(p orb.Point, k int) []uint32 {
	if e.index.Len() == 0 {
		return spatial.ScanNearest(e.g, p, k)
	}
	return e.index.Nearest(p, k)
}

// NearestAlongIncidentEdges returns the nearest candidate nodes of p plus
// every node one hop away from them. This approximates "nodes of the
// nearest road segments" without point-to-segment distance computations.
func (e *Engine) NearestAlongIncidentEdges(p orb.Point) []uint32 {
	base := e.NearestNodes(p, e.opts.candidateNodes)
	seen := make(map[uint32]struct{}, len(base)*4)
	out := make([]uint32, 0, len(base)*4)
	add := func(u uint32) {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	for _, u := range base {
		add(u)
		start, end := e.g.EdgesFrom(u)
		for i := start; i < end; i++ {
			add(e.g.Head[i])
		}
	}
	return out
}

func (e *Engine) candidates(p orb.Point) []uint32 {
	c := e.NearestAlongIncidentEdges(p)
	if len(c) == 0 {
		c = e.NearestNodes(p, e.opts.fallbackNodes)
	}
	return c
}

// project moves p into the graph's coordinate system. Untagged points are
// assumed to already be in it.
func (e *Engine) project(p Point) (orb.Point, error) {
	if e.g == nil || p.CRS.IsZero() || e.g.CRS.IsZero() || p.CRS.Equal(e.g.CRS) {
		return p.Point, nil
	}
	return geo.Reproject(p.Point, p.CRS, e.g.CRS)
}

// ShortestPath routes between two points. Every node near start seeds the
// search at its straight-line access cost; the search stops at the first
// node near end that it settles.
func (e *Engine) ShortestPath(ctx context.Context, start, end Point) (*Result, error) {
	ctx, span := tracer.Start(ctx, "routing.ShortestPath", trace.WithAttributes(
		attribute.Float64Slice("start", start.Point[:]),
		attribute.Float64Slice("end", end.Point[:]),
	))
	defer span.End()

	t := time.Now()
	res, err := e.shortestPath(ctx, start, end)
	observe(span, "point", t, res, err)
	return res, err
}

func (e *Engine) shortestPath(ctx context.Context, start, end Point) (*Result, error) {
	if e.g.Empty() {
		return nil, fmt.Errorf("empty network: %w", ErrNoCandidates)
	}
	sp, err := e.project(start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	ep, err := e.project(end)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	starts := e.candidates(sp)
	if len(starts) == 0 {
		return nil, fmt.Errorf("start %v: %w", sp, ErrNoCandidates)
	}
	ends := e.candidates(ep)
	if len(ends) == 0 {
		return nil, fmt.Errorf("end %v: %w", ep, ErrNoCandidates)
	}

	seeds := make([]seed, len(starts))
	for i, u := range starts {
		seeds[i] = seed{node: u, cost: geo.Dist(sp, e.g.Point(u))}
	}
	endSet := make(map[uint32]struct{}, len(ends))
	for _, u := range ends {
		endSet[u] = struct{}{}
	}
	return e.search(ctx, seeds, func(u uint32) bool {
		_, ok := endSet[u]
		return ok
	})
}

// NodePath routes from one node to another with zero access cost.
func (e *Engine) NodePath(ctx context.Context, from, to uint32) (*Result, error) {
	if e.g.Empty() || from >= e.g.NumNodes || to >= e.g.NumNodes {
		return nil, fmt.Errorf("%w: %d -> %d", ErrUnknownNode, from, to)
	}
	return e.search(ctx, []seed{{node: from}}, func(u uint32) bool { return u == to })
}

func (e *Engine) search(ctx context.Context, seeds []seed, isEnd func(uint32) bool) (*Result, error) {
	qs := e.states.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.states.Put(qs)
	}()

	reached, stats, err := runDijkstra(ctx, e.g, qs, seeds, isEnd)
	settledNodes.Observe(float64(stats.settled))
	if err != nil {
		return nil, err
	}
	if reached == noNode {
		return nil, ErrDisconnected
	}

	nodes, edges := pathEdges(qs, reached)
	return e.assemble(nodes, edges), nil
}

// assemble turns a node/edge path into a Result. Geometry pieces follow the
// traversal order and are oriented along it; pieces that cannot be resolved
// are skipped. Length is the sum of edge weights, not of the geometry.
func (e *Engine) assemble(nodes, edges []uint32) *Result {
	res := &Result{Nodes: nodes, CRS: e.g.CRS}
	refs := make([]graph.EdgeRef, len(edges))
	for i, idx := range edges {
		edge := e.g.Edge(idx)
		refs[i] = edge.Ref
		res.Length += edge.Weight
	}

	pieces := e.resolver.ResolveEdges(refs)
	for i, piece := range pieces {
		if piece == nil {
			res.Unresolved++
			continue
		}
		from, to := e.g.Point(nodes[i]), e.g.Point(nodes[i+1])
		if geo.Dist(piece[0], from) > geo.Dist(piece[0], to) {
			piece.Reverse()
		}
		res.Parts = append(res.Parts, piece)
	}

	res.FeatureIDs = make([]int32, 0, len(refs))
	for _, ref := range refs {
		res.FeatureIDs = append(res.FeatureIDs, ref.FeatureID)
	}
	res.FeatureIDs = sortedUnique(res.FeatureIDs)
	return res
}

// ShortestPathChain routes through every point in order. A leg that fails
// with ErrNoPath is replaced by a straight two-point connector, so the
// result is never nil for two or more points. With the fallback disabled
// the first failing leg's error is returned instead.
func (e *Engine) ShortestPathChain(ctx context.Context, points []Point) (*Result, error) {
	ctx, span := tracer.Start(ctx, "routing.ShortestPathChain", trace.WithAttributes(
		attribute.Int("points", len(points)),
	))
	defer span.End()

	t := time.Now()
	res, err := e.chain(ctx, points)
	observe(span, "chain", t, res, err)
	return res, err
}

func (e *Engine) chain(ctx context.Context, points []Point) (*Result, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}

	out := &Result{CRS: e.g.CRS}
	for i := 0; i+1 < len(points); i++ {
		leg, err := e.shortestPath(ctx, points[i], points[i+1])
		if err != nil {
			if !errors.Is(err, ErrNoPath) || !e.opts.straightLine {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			a, perr := e.project(points[i])
			if perr != nil {
				return nil, fmt.Errorf("leg %d: %w", i, perr)
			}
			b, perr := e.project(points[i+1])
			if perr != nil {
				return nil, fmt.Errorf("leg %d: %w", i, perr)
			}
			e.opts.logger.Debug("inserting straight connector", "leg", i, "reason", err)
			connectorsTotal.Inc()
			out.Parts = append(out.Parts, orb.LineString{a, b})
			out.Length += geo.Dist(a, b)
			out.Connectors++
			continue
		}

		out.Parts = append(out.Parts, leg.Parts...)
		out.Length += leg.Length
		out.Nodes = append(out.Nodes, leg.Nodes...)
		out.FeatureIDs = append(out.FeatureIDs, leg.FeatureIDs...)
		out.Unresolved += leg.Unresolved
	}
	out.FeatureIDs = sortedUnique(out.FeatureIDs)
	return out, nil
}

func observe(span trace.Span, mode string, start time.Time, res *Result, err error) {
	queryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	queriesTotal.WithLabelValues(mode, resultLabel(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Float64("length", res.Length),
		attribute.Int("parts", len(res.Parts)),
		attribute.Int("connectors", res.Connectors),
	)
	span.SetStatus(codes.Ok, "")
}

func sortedUnique(ids []int32) []int32 {
	slices.Sort(ids)
	return slices.Compact(ids)
}
