package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
)

// OpenOptions configures Open.
type OpenOptions struct {
	// Name is the layer name. Defaults to the file name without extensions.
	Name string
	// CRS of GeoJSON coordinates. Defaults to WGS84. Ignored for OSM files.
	CRS geo.CRS
	// BBox restricts OSM input; see OSMOptions.
	BBox   orb.Bound
	Logger *slog.Logger
}

// Open loads a line layer from a .geojson/.json or .osm.pbf/.pbf file.
func Open(ctx context.Context, path string, opts OpenOptions) (*Memory, error) {
	name := opts.Name
	if name == "" {
		name = LayerName(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pbf"):
		return ReadOSM(ctx, name, f, OSMOptions{BBox: opts.BBox, Logger: opts.Logger})
	case strings.HasSuffix(lower, ".geojson"), strings.HasSuffix(lower, ".json"):
		crs := opts.CRS
		if crs.IsZero() {
			crs = geo.WGS84
		}
		return ReadGeoJSON(name, f, crs)
	}
	return nil, fmt.Errorf("unsupported source format: %s", filepath.Ext(path))
}

// LayerName derives a layer name from a file path: "data/sg.osm.pbf" -> "sg".
func LayerName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
