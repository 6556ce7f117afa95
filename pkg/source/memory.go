package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/azybler/roadnet/pkg/geo"
)

// Memory is an in-memory feature store. It implements LineSource,
// BoundedSource and FeatureLookup. Features keep insertion order; bounding
// boxes are indexed in an R-tree. Add is not safe for concurrent use with reads.
type Memory struct {
	name     string
	crs      geo.CRS
	features []Feature
	byID     map[int32]int // feature id -> position in features
	tree     rtree.RTreeG[int]
}

// NewMemory creates an empty store for the named layer.
func NewMemory(name string, crs geo.CRS) *Memory {
	return &Memory{
		name: name,
		crs:  crs,
		byID: make(map[int32]int),
	}
}

func (m *Memory) Name() string { return m.name }
func (m *Memory) CRS() geo.CRS { return m.crs }

// Len returns the number of features.
func (m *Memory) Len() int { return len(m.features) }

// Add appends a feature. Feature ids must be unique.
func (m *Memory) Add(f Feature) error {
	if _, dup := m.byID[f.ID]; dup {
		return fmt.Errorf("duplicate feature id %d", f.ID)
	}
	pos := len(m.features)
	m.features = append(m.features, f)
	m.byID[f.ID] = pos
	if f.Geometry != nil {
		b := f.Geometry.Bound()
		m.tree.Insert(b.Min, b.Max, pos)
	}
	return nil
}

// Bound returns the bounding box of all features.
func (m *Memory) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range m.features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b = f.Geometry.Bound()
			first = false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// Features implements LineSource.
func (m *Memory) Features(ctx context.Context, fn func(Feature) error) error {
	for i := range m.features {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m.features[i]); err != nil {
			return err
		}
	}
	return nil
}

// FeaturesIn implements BoundedSource. Matches are visited in insertion order.
func (m *Memory) FeaturesIn(ctx context.Context, bound orb.Bound, fn func(Feature) error) error {
	var hits []int
	m.tree.Search(bound.Min, bound.Max, func(_, _ [2]float64, pos int) bool {
		hits = append(hits, pos)
		return true
	})
	sort.Ints(hits)

	for _, pos := range hits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m.features[pos]); err != nil {
			return err
		}
	}
	return nil
}

// LookupFeatures implements FeatureLookup.
func (m *Memory) LookupFeatures(ids []int32) (map[int32]Feature, error) {
	out := make(map[int32]Feature, len(ids))
	for _, id := range ids {
		if pos, ok := m.byID[id]; ok {
			out[id] = m.features[pos]
		}
	}
	return out, nil
}
