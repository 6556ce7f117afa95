// Package source defines the line feature sources the network builder consumes
// and the feature lookups the geometry resolver queries.
package source

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
)

// Feature is one line feature with a stable integer identity.
type Feature struct {
	ID         int32
	Geometry   orb.Geometry // orb.LineString or orb.MultiLineString
	Properties map[string]string
}

// LineSource enumerates line features of a single layer.
type LineSource interface {
	// Name identifies the layer. It keys the graph cache.
	Name() string
	// CRS describes the coordinate system of every feature geometry.
	CRS() geo.CRS
	// Features calls fn for each feature in a stable order. A non-nil error
	// from fn stops the enumeration and is returned.
	Features(ctx context.Context, fn func(Feature) error) error
}

// BoundedSource is a LineSource that can restrict enumeration to features
// whose bounding box intersects a bound.
type BoundedSource interface {
	LineSource
	FeaturesIn(ctx context.Context, bound orb.Bound, fn func(Feature) error) error
}

// FeatureLookup resolves features by id. Missing ids are absent from the result.
type FeatureLookup interface {
	LookupFeatures(ids []int32) (map[int32]Feature, error)
}
