package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrUnsupportedGeometry is returned for geometries that are not lines.
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
	// ErrDegenerateGeometry is returned for lines without a single segment.
	ErrDegenerateGeometry = errors.New("line has fewer than two vertices")
)

// Segment is one straight piece between two consecutive vertices of a line.
type Segment struct {
	A, B orb.Point
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 { return Dist(s.A, s.B) }

// LineString returns the segment as a standalone two-point line.
func (s Segment) LineString() orb.LineString { return orb.LineString{s.A, s.B} }

// Segments planarizes a line geometry into its ordered atomic segments.
// Segment indices run across all parts of a MultiLineString in order; parts
// with fewer than two vertices contribute nothing.
func Segments(g orb.Geometry) ([]Segment, error) {
	var parts []orb.LineString
	switch t := g.(type) {
	case orb.LineString:
		parts = []orb.LineString{t}
	case orb.MultiLineString:
		parts = t
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedGeometry)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}

	n := 0
	for _, ls := range parts {
		if len(ls) > 1 {
			n += len(ls) - 1
		}
	}
	if n == 0 {
		return nil, ErrDegenerateGeometry
	}

	segs := make([]Segment, 0, n)
	for _, ls := range parts {
		for i := 1; i < len(ls); i++ {
			a, b := ls[i-1], ls[i]
			if !finite(a) || !finite(b) {
				return nil, fmt.Errorf("non-finite coordinate in segment %d", len(segs))
			}
			segs = append(segs, Segment{A: a, B: b})
		}
	}
	return segs, nil
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
