package spatial

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
)

// pointsGraph builds an edgeless graph over the given points.
func pointsGraph(t testing.TB, pts ...orb.Point) *graph.Graph {
	t.Helper()
	nodes := make([]graph.Node, len(pts))
	for i, p := range pts {
		nodes[i] = graph.Node{ID: uint32(i), X: p[0], Y: p[1]}
	}
	g, err := graph.New(1, nodes, make([][]graph.Edge, len(pts)))
	require.NoError(t, err)
	return g
}

func TestNearestSameCell(t *testing.T) {
	g := pointsGraph(t, orb.Point{0.1, 0.1}, orb.Point{0.9, 0.9})
	grid := NewGrid(g, 1)

	got := grid.Nearest(orb.Point{0.5, 0.5}, 2)
	assert.ElementsMatch(t, []uint32{0, 1}, got)
}

func TestNearestAdjacentCells(t *testing.T) {
	g := pointsGraph(t, orb.Point{0.1, 0.1}, orb.Point{0.9, 0.9})
	grid := NewGrid(g, 0.5)

	got := grid.Nearest(orb.Point{0.5, 0.5}, 2)
	assert.ElementsMatch(t, []uint32{0, 1}, got)
}

func TestNearestOrderedByDistance(t *testing.T) {
	g := pointsGraph(t,
		orb.Point{3, 0},
		orb.Point{1, 0},
		orb.Point{2, 0},
		orb.Point{-1, 0}, // ties with node 1
	)
	grid := NewGrid(g, 10)

	assert.Equal(t, []uint32{1, 3, 2}, grid.Nearest(orb.Point{0, 0}, 3))
	assert.Equal(t, []uint32{1, 3, 2, 0}, grid.Nearest(orb.Point{0, 0}, 10))
	assert.Nil(t, grid.Nearest(orb.Point{0, 0}, 0))
}

func TestNearestWidensToRingTwo(t *testing.T) {
	// One node next door, one two cells away.
	g := pointsGraph(t, orb.Point{1.5, 0.5}, orb.Point{2.5, 0.5}, orb.Point{3.5, 0.5})
	grid := NewGrid(g, 1)

	// k=1 needs 2 candidates; the 3×3 neighbourhood holds only node 0.
	assert.Equal(t, []uint32{0}, grid.Nearest(orb.Point{0.5, 0.5}, 1))
	// k=3 widens to ring 2 and picks up node 1, but never node 2 at ring 3.
	assert.Equal(t, []uint32{0, 1}, grid.Nearest(orb.Point{0.5, 0.5}, 3))
}

func TestNearestNoWideningWhenEnough(t *testing.T) {
	g := pointsGraph(t,
		orb.Point{0.2, 0.2}, orb.Point{0.4, 0.4}, orb.Point{0.6, 0.6},
		orb.Point{2.5, 0.5},
	)
	grid := NewGrid(g, 1)
	// Three candidates in the 3×3 block satisfy 2k for k=1.
	assert.Equal(t, []uint32{0}, grid.Nearest(orb.Point{0, 0}, 1))
	assert.NotContains(t, grid.Nearest(orb.Point{0.5, 0.5}, 1), uint32(3))
}

func TestNearestFarPoint(t *testing.T) {
	g := pointsGraph(t, orb.Point{0, 0})
	grid := NewGrid(g, 1)
	assert.Empty(t, grid.Nearest(orb.Point{100, 100}, 5))
}

func TestNearestNegativeCoordinates(t *testing.T) {
	g := pointsGraph(t, orb.Point{-0.5, -0.5}, orb.Point{0.5, 0.5})
	grid := NewGrid(g, 1)
	assert.Equal(t, []uint32{0, 1}, grid.Nearest(orb.Point{-0.4, -0.4}, 2))
}

func TestEmptyGridFallsBackToScan(t *testing.T) {
	g := pointsGraph(t, orb.Point{100, 100}, orb.Point{5, 5})
	grid := &Grid{g: g, cellSize: 1}

	assert.Equal(t, []uint32{1, 0}, grid.Nearest(orb.Point{0, 0}, 2))

	var nilGrid *Grid
	assert.Equal(t, 0, nilGrid.Len())
	assert.Nil(t, nilGrid.Nearest(orb.Point{0, 0}, 2))
}

func TestScanNearest(t *testing.T) {
	g := pointsGraph(t, orb.Point{10, 0}, orb.Point{0, 1}, orb.Point{5, 5})
	assert.Equal(t, []uint32{1, 2}, ScanNearest(g, orb.Point{0, 0}, 2))
	assert.Nil(t, ScanNearest(nil, orb.Point{0, 0}, 2))
}

func TestNewGridForCRS(t *testing.T) {
	g := pointsGraph(t, orb.Point{103.8, 1.3})
	g.CRS = geo.WGS84
	assert.Equal(t, 0.05, NewGridForCRS(g).CellSize())

	g.CRS = geo.WebMercator
	assert.Equal(t, 5000.0, NewGridForCRS(g).CellSize())

	assert.Equal(t, 5000.0, NewGrid(g, -1).CellSize())
}

func TestGridMatchesScanWithinRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := make([]orb.Point, 2000)
	for i := range pts {
		pts[i] = orb.Point{rng.Float64() * 100, rng.Float64() * 100}
	}
	g := pointsGraph(t, pts...)
	grid := NewGrid(g, 10)

	for range 100 {
		q := orb.Point{rng.Float64() * 100, rng.Float64() * 100}
		got := grid.Nearest(q, 3)
		want := ScanNearest(g, q, 3)
		// With ~20 nodes per cell the 3×3 block always holds the true nearest three.
		assert.Equal(t, want, got, "query %v", q)
	}
}

func BenchmarkNearest(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pts := make([]orb.Point, 200_000)
	for i := range pts {
		pts[i] = orb.Point{rng.Float64() * 100_000, rng.Float64() * 100_000}
	}
	g := pointsGraph(b, pts...)
	grid := NewGrid(g, 5000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.Nearest(orb.Point{50_000, 50_000}, 50)
	}
}
