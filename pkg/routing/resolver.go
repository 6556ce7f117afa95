package routing

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/source"
)

// Resolver recovers edge geometry from the feature store on demand. The
// graph only keeps (feature id, segment index) handles.
type Resolver struct {
	lookup source.FeatureLookup
	logger *slog.Logger
}

// NewResolver returns a resolver over lookup. A nil lookup resolves nothing.
func NewResolver(lookup source.FeatureLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// ResolveEdges returns one two-point piece per ref, in order. Feature ids are
// deduplicated and fetched in a single lookup. A ref whose feature is missing
// or whose segment index is out of range gets a nil piece.
func (r *Resolver) ResolveEdges(refs []graph.EdgeRef) []orb.LineString {
	out := make([]orb.LineString, len(refs))
	if r == nil || r.lookup == nil || len(refs) == 0 {
		resolveFailures.Add(float64(len(refs)))
		return out
	}

	seen := make(map[int32]bool, len(refs))
	ids := make([]int32, 0, len(refs))
	for _, ref := range refs {
		if !seen[ref.FeatureID] {
			seen[ref.FeatureID] = true
			ids = append(ids, ref.FeatureID)
		}
	}

	features, err := r.lookup.LookupFeatures(ids)
	if err != nil {
		r.logger.Warn("feature lookup failed", "features", len(ids), "error", err)
		resolveFailures.Add(float64(len(refs)))
		return out
	}

	// Planarize each feature once per batch.
	segments := make(map[int32][]geo.Segment, len(features))
	for i, ref := range refs {
		segs, ok := segments[ref.FeatureID]
		if !ok {
			if f, found := features[ref.FeatureID]; found {
				segs, err = geo.Segments(f.Geometry)
				if err != nil {
					r.logger.Debug("feature geometry unusable", "feature", ref.FeatureID, "error", err)
				}
			}
			segments[ref.FeatureID] = segs
		}
		if ref.Segment < 0 || int(ref.Segment) >= len(segs) {
			r.logger.Debug("edge geometry unresolved", "feature", ref.FeatureID, "segment", ref.Segment)
			resolveFailures.Inc()
			continue
		}
		out[i] = segs[ref.Segment].LineString()
	}
	return out
}

// ResolveEdge resolves a single ref.
func (r *Resolver) ResolveEdge(ref graph.EdgeRef) orb.LineString {
	return r.ResolveEdges([]graph.EdgeRef{ref})[0]
}
