package source

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/azybler/roadnet/pkg/geo"
)

// ReadGeoJSON loads a GeoJSON FeatureCollection into a Memory store.
//
// A feature keeps its integral "id" (feature id or "id"/"fid" property) when
// present and in int32 range; every other feature gets the next free id
// after the largest explicit one, or the lowest unused non-negative id once
// that would leave the int32 range.
func ReadGeoJSON(name string, r io.Reader, crs geo.CRS) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	ids := make([]int32, len(fc.Features))
	explicit := make([]bool, len(fc.Features))
	used := make(map[int32]bool)
	var next int64
	for i, f := range fc.Features {
		if id, ok := featureID(f); ok {
			ids[i], explicit[i] = id, true
			used[id] = true
			next = max(next, int64(id)+1)
		}
	}

	var low int32
	mem := NewMemory(name, crs)
	for i, f := range fc.Features {
		id := ids[i]
		if !explicit[i] {
			if next <= math.MaxInt32 {
				id = int32(next)
				next++
			} else {
				for used[low] {
					low++
				}
				id = low
				used[low] = true
			}
		}
		if err := mem.Add(Feature{
			ID:         id,
			Geometry:   f.Geometry,
			Properties: stringProps(f.Properties),
		}); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return mem, nil
}

func featureID(f *geojson.Feature) (int32, bool) {
	if id, ok := toInt32(f.ID); ok {
		return id, true
	}
	for _, key := range []string{"id", "fid"} {
		if v, ok := f.Properties[key]; ok {
			if id, ok := toInt32(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func toInt32(v interface{}) (int32, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(n), true
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}

func stringProps(props geojson.Properties) map[string]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = fmt.Sprint(v)
	}
	return out
}
