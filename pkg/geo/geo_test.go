package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name             string
		lat1, lon1       float64
		lat2, lon2       float64
		wantMeters       float64
		tolerancePercent float64
	}{
		{
			name: "Singapore CBD to Changi Airport",
			lat1: 1.2830, lon1: 103.8513,
			lat2: 1.3644, lon2: 103.9915,
			wantMeters:       18_023,
			tolerancePercent: 1,
		},
		{
			name: "London to Paris",
			lat1: 51.5074, lon1: -0.1278,
			lat2: 48.8566, lon2: 2.3522,
			wantMeters:       343_500,
			tolerancePercent: 1,
		},
		{
			name: "Short distance (~100m)",
			lat1: 1.3521, lon1: 103.8198,
			lat2: 1.3530, lon2: 103.8198,
			wantMeters:       100,
			tolerancePercent: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			diff := math.Abs(got-tt.wantMeters) / tt.wantMeters * 100
			assert.LessOrEqualf(t, diff, tt.tolerancePercent, "Haversine = %f m, want ~%f m", got, tt.wantMeters)
		})
	}

	assert.Zero(t, Haversine(1.3521, 103.8198, 1.3521, 103.8198))
}

func TestLengthMeters(t *testing.T) {
	ls := orb.LineString{{0, 0}, {3, 4}, {3, 10}}
	assert.InDelta(t, 11.0, LengthMeters(ls, WebMercator), 1e-9)

	geoLine := orb.LineString{{103.8198, 1.3521}, {103.8198, 1.3530}}
	assert.InDelta(t, 100, LengthMeters(geoLine, WGS84), 5)
}

func TestCRSConstants(t *testing.T) {
	assert.Equal(t, 1.0, WebMercator.MergeTolerance())
	assert.Equal(t, 1e-5, WGS84.MergeTolerance())
	assert.Equal(t, 1.0, CRS{}.MergeTolerance(), "unspecified behaves as projected")

	assert.Greater(t, WebMercator.CellSize(), 1000.0)
	assert.Less(t, WGS84.CellSize(), 1.0)
	assert.NotEqual(t, WGS84.MergeTolerance(), WGS84.CellSize())
}

func TestParseCRS(t *testing.T) {
	tests := []struct {
		in      string
		want    CRS
		wantErr bool
	}{
		{in: "EPSG:4326", want: WGS84},
		{in: "epsg:3857", want: WebMercator},
		{in: "4269", want: CRS{Kind: Geographic, EPSG: 4269}},
		{in: "32648", want: CRS{Kind: Projected, EPSG: 32648}},
		{in: "geographic", want: CRS{Kind: Geographic}},
		{in: "projected", want: CRS{Kind: Projected}},
		{in: "", want: CRS{}},
		{in: "EPSG:abc", wantErr: true},
		{in: "-5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCRS(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReproject(t *testing.T) {
	p := orb.Point{103.8198, 1.3521}

	same, err := Reproject(p, WGS84, WGS84)
	require.NoError(t, err)
	assert.Equal(t, p, same)

	untagged, err := Reproject(p, CRS{}, WebMercator)
	require.NoError(t, err)
	assert.Equal(t, p, untagged)

	merc, err := Reproject(p, WGS84, WebMercator)
	require.NoError(t, err)
	assert.Greater(t, merc[0], 1e7)

	back, err := Reproject(merc, WebMercator, WGS84)
	require.NoError(t, err)
	assert.InDelta(t, p[0], back[0], 1e-9)
	assert.InDelta(t, p[1], back[1], 1e-9)

	_, err = Reproject(p, WGS84, CRS{Kind: Projected, EPSG: 32648})
	assert.True(t, errors.Is(err, ErrUnsupportedReprojection))
}

func TestSegments(t *testing.T) {
	t.Run("line string", func(t *testing.T) {
		segs, err := Segments(orb.LineString{{0, 0}, {1, 0}, {1, 1}})
		require.NoError(t, err)
		require.Len(t, segs, 2)
		assert.Equal(t, Segment{A: orb.Point{0, 0}, B: orb.Point{1, 0}}, segs[0])
		assert.Equal(t, Segment{A: orb.Point{1, 0}, B: orb.Point{1, 1}}, segs[1])
		assert.Equal(t, 1.0, segs[1].Length())
	})

	t.Run("multi line string indexes across parts", func(t *testing.T) {
		mls := orb.MultiLineString{
			{{0, 0}, {1, 0}},
			{{5}},
			{{2, 2}, {3, 2}, {4, 2}},
		}
		segs, err := Segments(mls)
		require.NoError(t, err)
		require.Len(t, segs, 3)
		assert.Equal(t, orb.Point{2, 2}, segs[1].A)
		assert.Equal(t, orb.Point{3, 2}, segs[2].A)
		assert.Equal(t, orb.LineString{{3, 2}, {4, 2}}, segs[2].LineString())
	})

	t.Run("degenerate", func(t *testing.T) {
		_, err := Segments(orb.LineString{{0, 0}})
		assert.ErrorIs(t, err, ErrDegenerateGeometry)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Segments(orb.Point{1, 1})
		assert.ErrorIs(t, err, ErrUnsupportedGeometry)
		_, err = Segments(nil)
		assert.ErrorIs(t, err, ErrUnsupportedGeometry)
	})

	t.Run("non-finite", func(t *testing.T) {
		_, err := Segments(orb.LineString{{0, 0}, {math.NaN(), 1}})
		assert.Error(t, err)
	})
}
