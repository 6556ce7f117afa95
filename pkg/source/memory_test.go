package source

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/roadnet/pkg/geo"
)

func collect(t *testing.T, fn func(func(Feature) error) error) []int32 {
	t.Helper()
	var ids []int32
	require.NoError(t, fn(func(f Feature) error {
		ids = append(ids, f.ID)
		return nil
	}))
	return ids
}

func TestMemoryFeaturesInOrder(t *testing.T) {
	mem := NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(Feature{ID: 7, Geometry: orb.LineString{{0, 0}, {10, 0}}}))
	require.NoError(t, mem.Add(Feature{ID: 3, Geometry: orb.LineString{{100, 100}, {110, 100}}}))
	require.NoError(t, mem.Add(Feature{ID: 5, Geometry: orb.LineString{{5, -5}, {5, 5}}}))

	assert.Equal(t, "roads", mem.Name())
	assert.Equal(t, geo.WebMercator, mem.CRS())
	assert.Equal(t, 3, mem.Len())

	ids := collect(t, func(fn func(Feature) error) error {
		return mem.Features(context.Background(), fn)
	})
	assert.Equal(t, []int32{7, 3, 5}, ids)

	assert.Equal(t, orb.Bound{Min: orb.Point{0, -5}, Max: orb.Point{110, 100}}, mem.Bound())
}

func TestMemoryDuplicateID(t *testing.T) {
	mem := NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(Feature{ID: 1, Geometry: orb.LineString{{0, 0}, {1, 0}}}))
	assert.Error(t, mem.Add(Feature{ID: 1, Geometry: orb.LineString{{0, 0}, {1, 0}}}))
}

func TestMemoryFeaturesIn(t *testing.T) {
	mem := NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(Feature{ID: 1, Geometry: orb.LineString{{0, 0}, {10, 0}}}))
	require.NoError(t, mem.Add(Feature{ID: 2, Geometry: orb.LineString{{100, 100}, {110, 100}}}))
	require.NoError(t, mem.Add(Feature{ID: 3, Geometry: orb.LineString{{5, -5}, {5, 5}}}))

	bound := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{6, 1}}
	ids := collect(t, func(fn func(Feature) error) error {
		return mem.FeaturesIn(context.Background(), bound, fn)
	})
	assert.Equal(t, []int32{1, 3}, ids)
}

func TestMemoryStopsOnCallbackError(t *testing.T) {
	mem := NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(Feature{ID: 1, Geometry: orb.LineString{{0, 0}, {1, 0}}}))
	require.NoError(t, mem.Add(Feature{ID: 2, Geometry: orb.LineString{{0, 1}, {1, 1}}}))

	stop := errors.New("stop")
	calls := 0
	err := mem.Features(context.Background(), func(Feature) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mem.Features(ctx, func(Feature) error { return nil }), context.Canceled)
}

func TestMemoryLookupFeatures(t *testing.T) {
	mem := NewMemory("roads", geo.WebMercator)
	require.NoError(t, mem.Add(Feature{ID: 10, Geometry: orb.LineString{{0, 0}, {1, 0}}}))
	require.NoError(t, mem.Add(Feature{ID: 11, Geometry: orb.LineString{{0, 1}, {1, 1}}}))

	got, err := mem.LookupFeatures([]int32{11, 99})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(11), got[11].ID)
}

func TestReadGeoJSON(t *testing.T) {
	const doc = `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "id": 4, "properties": {"name": "Main St"},
	     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,0]]}},
	    {"type": "Feature", "properties": {"fid": "9"},
	     "geometry": {"type": "LineString", "coordinates": [[1,0],[1,1]]}},
	    {"type": "Feature", "properties": {},
	     "geometry": {"type": "MultiLineString", "coordinates": [[[2,0],[3,0]],[[3,1],[4,1]]]}}
	  ]
	}`

	mem, err := ReadGeoJSON("roads", strings.NewReader(doc), geo.WGS84)
	require.NoError(t, err)
	require.Equal(t, 3, mem.Len())

	ids := collect(t, func(fn func(Feature) error) error {
		return mem.Features(context.Background(), fn)
	})
	assert.Equal(t, []int32{4, 9, 10}, ids)

	got, err := mem.LookupFeatures([]int32{4, 10})
	require.NoError(t, err)
	assert.Equal(t, "Main St", got[4].Properties["name"])
	_, isMulti := got[10].Geometry.(orb.MultiLineString)
	assert.True(t, isMulti)
}

func TestReadGeoJSONMaxExplicitID(t *testing.T) {
	const doc = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":2147483647,"properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,0]]}},
	  {"type":"Feature","id":0,"properties":{},"geometry":{"type":"LineString","coordinates":[[1,0],[2,0]]}},
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[2,0],[3,0]]}},
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[3,0],[4,0]]}}]}`

	mem, err := ReadGeoJSON("roads", strings.NewReader(doc), geo.WGS84)
	require.NoError(t, err)

	ids := collect(t, func(fn func(Feature) error) error {
		return mem.Features(context.Background(), fn)
	})
	assert.Equal(t, []int32{math.MaxInt32, 0, 1, 2}, ids)
}

func TestReadGeoJSONInvalid(t *testing.T) {
	_, err := ReadGeoJSON("roads", strings.NewReader("not json"), geo.WGS84)
	assert.Error(t, err)

	const dup = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":1,"properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,0]]}},
	  {"type":"Feature","id":1,"properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,0]]}}]}`
	_, err = ReadGeoJSON("roads", strings.NewReader(dup), geo.WGS84)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "city.roads.geojson")
	const doc = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,0]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	mem, err := Open(context.Background(), path, OpenOptions{})
	require.NoError(t, err)
	assert.Equal(t, "city", mem.Name())
	assert.Equal(t, geo.WGS84, mem.CRS())
	assert.Equal(t, 1, mem.Len())

	_, err = Open(context.Background(), filepath.Join(dir, "roads.shp"), OpenOptions{})
	assert.Error(t, err)

	bad := filepath.Join(dir, "roads.csv")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
	_, err = Open(context.Background(), bad, OpenOptions{})
	assert.ErrorContains(t, err, "unsupported source format")
}
