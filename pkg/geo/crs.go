package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ErrUnsupportedReprojection is returned when no transform between two CRSs is known.
var ErrUnsupportedReprojection = errors.New("unsupported reprojection")

// Kind classifies a coordinate system by its unit.
type Kind uint8

const (
	// Projected systems use linear units (meters, feet).
	Projected Kind = iota + 1
	// Geographic systems use degrees.
	Geographic
)

// Merge tolerances and grid cell sizes per coordinate-system class.
// Cell size is independent from the merge tolerance.
const (
	projectedTolerance  = 1.0
	geographicTolerance = 1e-5

	projectedCellSize  = 5000.0 // 5 km
	geographicCellSize = 0.05   // ~5.5 km at the equator
)

// CRS describes the coordinate system of a line source or a point.
// The zero value means "unspecified".
type CRS struct {
	Kind Kind
	EPSG int
}

var (
	WGS84       = CRS{Kind: Geographic, EPSG: 4326}
	WebMercator = CRS{Kind: Projected, EPSG: 3857}
)

// IsZero reports whether the CRS is unspecified.
func (c CRS) IsZero() bool { return c.Kind == 0 && c.EPSG == 0 }

// Geographic reports whether coordinates are in degrees.
func (c CRS) Geographic() bool { return c.Kind == Geographic }

// MergeTolerance returns the snapping distance for endpoints in this CRS.
// Unspecified systems are treated as projected.
func (c CRS) MergeTolerance() float64 {
	if c.Geographic() {
		return geographicTolerance
	}
	return projectedTolerance
}

// CellSize returns the spatial grid cell size for this CRS.
func (c CRS) CellSize() float64 {
	if c.Geographic() {
		return geographicCellSize
	}
	return projectedCellSize
}

// Equal compares two CRSs. When both carry an EPSG code only the codes are compared.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 && o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	return c.Kind == o.Kind
}

func (c CRS) String() string {
	if c.EPSG != 0 {
		return "EPSG:" + strconv.Itoa(c.EPSG)
	}
	switch c.Kind {
	case Projected:
		return "projected"
	case Geographic:
		return "geographic"
	}
	return "unspecified"
}

// geographicCodes lists the EPSG codes recognized as degree-based.
var geographicCodes = map[int]bool{
	4326: true, // WGS 84
	4269: true, // NAD83
	4258: true, // ETRS89
	4283: true, // GDA94
	4490: true, // CGCS2000
}

// ParseCRS parses "EPSG:<code>", a bare code, "projected" or "geographic".
// Unknown EPSG codes are assumed to be projected.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return CRS{}, nil
	case "projected":
		return CRS{Kind: Projected}, nil
	case "geographic":
		return CRS{Kind: Geographic}, nil
	}
	s = strings.TrimPrefix(s, "epsg:")
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return CRS{}, fmt.Errorf("invalid CRS %q", s)
	}
	if geographicCodes[code] {
		return CRS{Kind: Geographic, EPSG: code}, nil
	}
	return CRS{Kind: Projected, EPSG: code}, nil
}

// Reproject transforms p from one CRS to another. Unspecified or equal systems
// return p unchanged. Only WGS84 <-> Web Mercator is supported.
func Reproject(p orb.Point, from, to CRS) (orb.Point, error) {
	if from.IsZero() || to.IsZero() || from.Equal(to) {
		return p, nil
	}
	switch {
	case from.EPSG == WGS84.EPSG && to.EPSG == WebMercator.EPSG:
		return project.WGS84.ToMercator(p), nil
	case from.EPSG == WebMercator.EPSG && to.EPSG == WGS84.EPSG:
		return project.Mercator.ToWGS84(p), nil
	}
	return p, fmt.Errorf("%w: %s -> %s", ErrUnsupportedReprojection, from, to)
}
