package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// Dist returns the Euclidean distance between two points in their own units.
func Dist(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// LengthMeters returns the length of ls in meters. Geographic lines are
// measured on the sphere (X = lon, Y = lat); projected lines are assumed to be
// in meters already.
func LengthMeters(ls orb.LineString, crs CRS) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		if crs.Geographic() {
			total += Haversine(a[1], a[0], b[1], b[0])
		} else {
			total += Dist(a, b)
		}
	}
	return total
}
