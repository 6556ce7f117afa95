package source

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRoutable(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{
			name: "residential road",
			tags: osm.Tags{{Key: "highway", Value: "residential"}},
			want: true,
		},
		{
			name: "motorway",
			tags: osm.Tags{{Key: "highway", Value: "motorway"}},
			want: true,
		},
		{
			name: "footway",
			tags: osm.Tags{{Key: "highway", Value: "footway"}},
			want: false,
		},
		{
			name: "private access",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "private"},
			},
			want: false,
		},
		{
			name: "motor_vehicle=no",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "motor_vehicle", Value: "no"},
			},
			want: false,
		},
		{
			name: "area=yes (pedestrian plaza)",
			tags: osm.Tags{
				{Key: "highway", Value: "service"},
				{Key: "area", Value: "yes"},
			},
			want: false,
		},
		{
			name: "oneway=reversible",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "reversible"},
			},
			want: false,
		},
		{
			name: "oneway=yes stays in the undirected network",
			tags: osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "yes"},
			},
			want: true,
		},
		{
			name: "no highway tag",
			tags: osm.Tags{{Key: "name", Value: "Some Street"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRoutable(tt.tags))
		})
	}
}

func TestWayGeometry(t *testing.T) {
	coords := map[osm.NodeID]orb.Point{
		1: {103.80, 1.30},
		2: {103.81, 1.30},
		3: {103.82, 1.30},
		5: {103.84, 1.30},
		6: {103.85, 1.30},
	}

	t.Run("complete way", func(t *testing.T) {
		g := wayGeometry([]osm.NodeID{1, 2, 3}, coords, orb.Bound{}, false)
		ls, ok := g.(orb.LineString)
		require.True(t, ok)
		assert.Len(t, ls, 3)
	})

	t.Run("missing node splits the way", func(t *testing.T) {
		g := wayGeometry([]osm.NodeID{1, 2, 4, 5, 6}, coords, orb.Bound{}, false)
		mls, ok := g.(orb.MultiLineString)
		require.True(t, ok)
		require.Len(t, mls, 2)
		assert.Equal(t, orb.Point{103.84, 1.30}, mls[1][0])
	})

	t.Run("bbox clips vertices", func(t *testing.T) {
		bbox := orb.Bound{Min: orb.Point{103.79, 1.29}, Max: orb.Point{103.815, 1.31}}
		g := wayGeometry([]osm.NodeID{1, 2, 3}, coords, bbox, true)
		ls, ok := g.(orb.LineString)
		require.True(t, ok)
		assert.Len(t, ls, 2)
	})

	t.Run("nothing usable", func(t *testing.T) {
		assert.Nil(t, wayGeometry([]osm.NodeID{1, 4}, coords, orb.Bound{}, false))
	})
}
