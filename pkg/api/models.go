package api

import (
	"github.com/paulmach/orb/geojson"
)

// RouteRequest is the JSON body for POST /api/v1/route. Either Points (two
// or more, routed as a chain) or Start and End must be set.
type RouteRequest struct {
	Points []PointJSON `json:"points"`
	Start  *PointJSON  `json:"start"`
	End    *PointJSON  `json:"end"`
	// CRS of the request coordinates, e.g. "EPSG:4326". Empty means the
	// network's own CRS.
	CRS string `json:"crs"`
}

// PointJSON is a coordinate pair in JSON.
type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RouteResponse is the JSON response for a successful route query. Route
// holds one LineString feature per geometry piece, in traversal order and
// in the network's CRS. Length is in network units.
type RouteResponse struct {
	Length       float64                    `json:"length"`
	LengthMeters float64                    `json:"length_meters"`
	FeatureIDs   []int32                    `json:"feature_ids"`
	Nodes        int                        `json:"nodes"`
	Connectors   int                        `json:"connectors"`
	Unresolved   int                        `json:"unresolved,omitempty"`
	CRS          string                     `json:"crs,omitempty"`
	Route        *geojson.FeatureCollection `json:"route"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	Layer  string `json:"layer,omitempty"`
}
