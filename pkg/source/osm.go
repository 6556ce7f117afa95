package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/azybler/roadnet/pkg/geo"
)

// roadHighways lists highway tag values treated as part of the road network.
var roadHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isRoutable returns true if the way belongs to the drivable road network.
func isRoutable(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !roadHighways[hw] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	// Time-dependent direction, not representable in an undirected network.
	if tags.Find("oneway") == "reversible" {
		return false
	}

	return true
}

// wayInfo holds parsed way data collected during pass 1.
type wayInfo struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
	Highway string
	Name    string
}

// OSMOptions configures the OSM reader.
type OSMOptions struct {
	// BBox drops vertices outside the box; ways are split where they leave it.
	// The zero bound disables filtering.
	BBox   orb.Bound
	Logger *slog.Logger
}

// ReadOSM reads an OSM PBF file into a Memory store in WGS84 (X = lon, Y = lat).
// Each routable way becomes one feature with a sequential id; the OSM way id
// is kept in the "osm_id" property. Ways with missing node coordinates or
// vertices outside the bounding box become multi-part features.
//
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func ReadOSM(ctx context.Context, name string, rs io.ReadSeeker, opt OSMOptions) (*Memory, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	useBBox := opt.BBox != (orb.Bound{})

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isRoutable(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{
			ID:      w.ID,
			NodeIDs: nodeIDs,
			Highway: w.Tags.Find("highway"),
			Name:    w.Tags.Find("name"),
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	logger.Info("osm pass 1 complete", "ways", len(ways), "referenced_nodes", len(referencedNodes))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID]orb.Point, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	logger.Info("osm pass 2 complete", "node_coordinates", len(coords))

	mem := NewMemory(name, geo.WGS84)
	var dropped int
	for _, w := range ways {
		geom := wayGeometry(w.NodeIDs, coords, opt.BBox, useBBox)
		if geom == nil {
			dropped++
			continue
		}
		props := map[string]string{
			"osm_id":  strconv.FormatInt(int64(w.ID), 10),
			"highway": w.Highway,
		}
		if w.Name != "" {
			props["name"] = w.Name
		}
		if err := mem.Add(Feature{ID: int32(mem.Len()), Geometry: geom, Properties: props}); err != nil {
			return nil, err
		}
	}

	if dropped > 0 {
		logger.Warn("dropped ways without usable geometry", "count", dropped)
	}
	logger.Info("osm features built", "features", mem.Len())

	return mem, nil
}

// wayGeometry assembles a way's vertices into a LineString, or a
// MultiLineString when missing or out-of-box vertices split it. Returns nil
// when no part has at least two vertices.
func wayGeometry(ids []osm.NodeID, coords map[osm.NodeID]orb.Point, bbox orb.Bound, useBBox bool) orb.Geometry {
	var parts orb.MultiLineString
	var cur orb.LineString
	flush := func() {
		if len(cur) > 1 {
			parts = append(parts, cur)
		}
		cur = nil
	}

	for _, id := range ids {
		p, ok := coords[id]
		if !ok || (useBBox && !bbox.Contains(p)) {
			flush()
			continue
		}
		cur = append(cur, p)
	}
	flush()

	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return parts
}
