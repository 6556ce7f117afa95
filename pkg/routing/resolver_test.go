package routing

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/source"
)

// countingLookup records every batch it is asked for.
type countingLookup struct {
	inner   source.FeatureLookup
	batches [][]int32
	err     error
}

func (c *countingLookup) LookupFeatures(ids []int32) (map[int32]source.Feature, error) {
	c.batches = append(c.batches, append([]int32(nil), ids...))
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.LookupFeatures(ids)
}

func resolverSource(t *testing.T) *source.Memory {
	t.Helper()
	mem := source.NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(source.Feature{ID: 1, Geometry: orb.LineString{{0, 0}, {10, 0}, {10, 10}}}))
	require.NoError(t, mem.Add(source.Feature{ID: 2, Geometry: orb.MultiLineString{
		{{20, 0}, {30, 0}},
		{{40, 0}, {50, 0}},
	}}))
	require.NoError(t, mem.Add(source.Feature{ID: 3, Geometry: orb.Point{1, 1}}))
	return mem
}

func TestResolveEdges(t *testing.T) {
	lookup := &countingLookup{inner: resolverSource(t)}
	r := NewResolver(lookup, quietLogger)

	refs := []graph.EdgeRef{
		{FeatureID: 1, Segment: 1},
		{FeatureID: 2, Segment: 1},
		{FeatureID: 1, Segment: 0},
		{FeatureID: 9, Segment: 0}, // missing feature
		{FeatureID: 1, Segment: 5}, // out of range
		{FeatureID: 3, Segment: 0}, // not a line
		{FeatureID: 2, Segment: -1},
	}
	pieces := r.ResolveEdges(refs)
	require.Len(t, pieces, len(refs))

	assert.Equal(t, orb.LineString{{10, 0}, {10, 10}}, pieces[0])
	assert.Equal(t, orb.LineString{{40, 0}, {50, 0}}, pieces[1])
	assert.Equal(t, orb.LineString{{0, 0}, {10, 0}}, pieces[2])
	for _, p := range pieces[3:] {
		assert.Nil(t, p)
	}

	// One batch, each feature once, in first-seen order.
	require.Len(t, lookup.batches, 1)
	assert.Equal(t, []int32{1, 2, 9, 3}, lookup.batches[0])
}

func TestResolveEdgesLookupError(t *testing.T) {
	lookup := &countingLookup{inner: resolverSource(t), err: errors.New("store offline")}
	r := NewResolver(lookup, quietLogger)

	pieces := r.ResolveEdges([]graph.EdgeRef{{FeatureID: 1}, {FeatureID: 2}})
	assert.Equal(t, []orb.LineString{nil, nil}, pieces)
}

func TestResolveEdgeWithoutLookup(t *testing.T) {
	r := NewResolver(nil, quietLogger)
	assert.Nil(t, r.ResolveEdge(graph.EdgeRef{FeatureID: 1}))
	assert.Empty(t, r.ResolveEdges(nil))
}
